// Package recipe loads Qpack.toml (or Qpack.yaml) recipes.
package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"github.com/qobs-build/qpack/internal/variant"
)

// Filenames are the recipe names searched for by Load, in order
var Filenames = []string{"Qpack.toml", "Qpack.yaml", "Qpack.yml"}

// ErrNotFound is returned by Load when a directory holds no recipe
var ErrNotFound = errors.New("no Qpack.toml found")

type Format int

const (
	TOML Format = iota
	YAML
)

// FormatOf guesses the format of a recipe file from its extension
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return TOML
}

// Recipe is a parsed recipe. The package section and option matrix are
// fixed at load time; definitions, rules and templates are evaluated per
// build by Instantiate.
type Recipe struct {
	Package PackageSection
	Source  SourceSection
	Matrix  variant.Matrix
	// Dir is the directory the recipe was loaded from
	Dir string

	raw map[string]any
}

// PackageSection defines the [package] section
type PackageSection struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Requires    []string `toml:"requires"`
	BuildSystem string   `toml:"build_system"`
	Subfolder   string   `toml:"subfolder"`
	Assets      string   `toml:"assets"`
	Prebuild    string   `toml:"prebuild"`
	Standard    *bool    `toml:"standard"`
}

// StandardRules reports whether the default layout rules apply
func (p PackageSection) StandardRules() bool {
	return p.Standard == nil || *p.Standard
}

// SourceSection defines the [source] section
type SourceSection struct {
	Git string `toml:"git"`
}

// RuleSection defines a [[rules]] entry
type RuleSection struct {
	Pattern string `toml:"pattern"`
	From    string `toml:"from"`
	// Root is what From is relative to: build, install or source
	Root string `toml:"root"`
	To   string `toml:"to"`
	Mode string `toml:"mode"`
	When string `toml:"when"`
}

var ruleRoots = []string{"", "build", "install", "source"}

// optionSection is the table form of an [options] entry
type optionSection struct {
	Default any      `toml:"default"`
	Values  []string `toml:"values"`
	Define  string   `toml:"define"`
}

// Load finds and parses the recipe in dir
func Load(dir string) (*Recipe, error) {
	for _, name := range Filenames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNotFound, dir)
}

// LoadFile parses the recipe at path
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	r.Dir = filepath.Dir(path)
	return r, nil
}

// Parse reads a recipe. The option matrix is validated here, so an invalid
// recipe fails before anything is built.
func Parse(rdr io.Reader, format Format) (*Recipe, error) {
	raw, err := decodeRaw(rdr, format)
	if err != nil {
		return nil, err
	}

	r := &Recipe{raw: raw}
	if err := unmarshalSection(raw, "package", &r.Package); err != nil {
		return nil, err
	}
	if err := unmarshalSection(raw, "source", &r.Source); err != nil {
		return nil, err
	}
	if r.Package.Name == "" {
		return nil, errors.New("recipe: [package] has no name")
	}

	opts, err := parseOptions(raw)
	if err != nil {
		return nil, err
	}
	r.Matrix, err = variant.NewMatrix(opts...)
	if err != nil {
		return nil, fmt.Errorf("recipe: %w", err)
	}
	return r, nil
}

func decodeRaw(rdr io.Reader, format Format) (map[string]any, error) {
	var raw map[string]any
	switch format {
	case YAML:
		data, err := io.ReadAll(rdr)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("recipe: %s", yaml.FormatError(err, false, true))
		}
	default:
		if err := toml.NewDecoder(rdr).Decode(&raw); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				return nil, errors.New(derr.String())
			}
			return nil, err
		}
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(raw map[string]any, name string, dst any) error {
	if data, ok := raw[name]; ok {
		if _, ok := data.(map[string]any); !ok {
			return fmt.Errorf("recipe: invalid [%s] section format: expected a table", name)
		}
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("recipe: failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// parseOptions builds the options of the [options] table, ordered by name
func parseOptions(raw map[string]any) ([]variant.Option, error) {
	section, ok := raw["options"]
	if !ok {
		return nil, nil
	}
	table, ok := section.(map[string]any)
	if !ok {
		return nil, errors.New("recipe: invalid [options] section format: expected a table")
	}

	opts := make([]variant.Option, 0, len(table))
	for _, name := range slices.Sorted(maps.Keys(table)) {
		opt, err := parseOption(name, table[name])
		if err != nil {
			return nil, fmt.Errorf("recipe: option %q: %w", name, err)
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

func parseOption(name string, v any) (variant.Option, error) {
	switch val := v.(type) {
	case bool:
		return variant.Option{Name: name, Kind: variant.Bool, Default: variant.BoolValue(val)}, nil
	case string:
		return variant.Option{Name: name, Kind: variant.Enum, Default: variant.EnumValue(val), Values: []string{val}}, nil
	case map[string]any:
		var sec optionSection
		if err := toml.Unmarshal([]byte(mustMarshal(val)), &sec); err != nil {
			return variant.Option{}, err
		}
		return sec.option(name)
	default:
		return variant.Option{}, fmt.Errorf("unexpected type %T, want a bool, a string or a table", v)
	}
}

func (s optionSection) option(name string) (variant.Option, error) {
	opt := variant.Option{Name: name, Define: s.Define}
	switch def := s.Default.(type) {
	case bool:
		if len(s.Values) > 0 {
			return opt, errors.New("a boolean option takes no values")
		}
		opt.Kind = variant.Bool
		opt.Default = variant.BoolValue(def)
	case string:
		opt.Kind = variant.Enum
		opt.Default = variant.EnumValue(def)
		opt.Values = s.Values
		if len(opt.Values) == 0 {
			opt.Values = []string{def}
		}
	case nil:
		if len(s.Values) == 0 {
			return opt, errors.New("needs a default or a list of values")
		}
		opt.Kind = variant.Enum
		opt.Default = variant.EnumValue(s.Values[0])
		opt.Values = s.Values
	default:
		return opt, fmt.Errorf("unexpected default of type %T", s.Default)
	}
	return opt, nil
}
