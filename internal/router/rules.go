package router

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qpack/internal/classify"
)

// Mode decides how a matched path is laid out under the destination root
type Mode int

const (
	// PreservePath keeps the path relative to the source root
	PreservePath Mode = iota
	// Flatten drops every directory and keeps the base name only
	Flatten
	// PreserveSymlinks is PreservePath, except symlinks are copied as links
	PreserveSymlinks
)

var modeNames = map[Mode]string{
	PreservePath:     "preserve",
	Flatten:          "flatten",
	PreserveSymlinks: "symlinks",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses the recipe spelling of a mode. An empty string means
// PreservePath.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve", "keep_path":
		return PreservePath, nil
	case "flatten":
		return Flatten, nil
	case "symlinks":
		return PreserveSymlinks, nil
	}
	return 0, fmt.Errorf("unknown copy mode %q, must be one of: preserve, flatten, symlinks", s)
}

// Rule copies every file under SourceRoot matching Pattern to DestRoot.
// Pattern uses doublestar syntax and is relative to SourceRoot.
type Rule struct {
	Pattern    string
	SourceRoot string
	DestRoot   string
	Mode       Mode
}

func (r Rule) String() string {
	return fmt.Sprintf("%s/%s -> %s (%s)", filepath.ToSlash(r.SourceRoot), r.Pattern, filepath.ToSlash(r.DestRoot), r.Mode)
}

// HeaderPattern matches public C and C++ headers
const HeaderPattern = "**/*.{h,hh,hpp,hxx,inl}"

// Layout is the destination folder of a package
type Layout struct {
	Root    string
	Project string
}

// Dir returns the directory of bucket b. Resources go into a folder named
// after the project.
func (l Layout) Dir(b classify.Bucket) string {
	if b == classify.ResDir && l.Project != "" {
		return filepath.Join(l.Root, string(b), l.Project)
	}
	return filepath.Join(l.Root, string(b))
}

// PrefixRule mirrors everything installed under prefix into the package
// root, keeping paths and symlinks.
func PrefixRule(prefix string, l Layout) Rule {
	return Rule{
		Pattern:    "**",
		SourceRoot: prefix,
		DestRoot:   l.Root,
		Mode:       PreserveSymlinks,
	}
}

// searchDirs tells which subfolders of a build tree hold outputs of a tag
var searchDirs = map[classify.Tag][]string{
	classify.DynamicLibrary: {"bin", "lib"},
	classify.DebugSymbol:    {"bin", "lib"},
	classify.StaticLibrary:  {"lib"},
	classify.ImportLibrary:  {"lib"},
}

var binaryTags = []classify.Tag{
	classify.DynamicLibrary,
	classify.DebugSymbol,
	classify.StaticLibrary,
	classify.ImportLibrary,
}

// StandardRules returns the rules of the default package layout: binaries
// and libraries found under roots are flattened into their buckets, headers
// under roots' include folders keep their paths, and the assets tree goes
// to the project's resource folder with symlinks intact. Earlier roots are
// searched first, so files found in later roots win on name clashes.
func StandardRules(c classify.Classifier, roots []string, assets string, l Layout) []Rule {
	var rules []Rule
	for _, root := range roots {
		if root == "" {
			continue
		}
		for _, tag := range binaryTags {
			for _, bucket := range c.Buckets(tag) {
				for _, sub := range searchDirs[tag] {
					for _, pat := range c.Patterns(tag) {
						rules = append(rules, Rule{
							Pattern:    pat,
							SourceRoot: filepath.Join(root, sub),
							DestRoot:   l.Dir(bucket),
							Mode:       Flatten,
						})
					}
				}
			}
		}
		rules = append(rules, Rule{
			Pattern:    HeaderPattern,
			SourceRoot: filepath.Join(root, "include"),
			DestRoot:   l.Dir(classify.IncludeDir),
			Mode:       PreservePath,
		})
	}
	if assets != "" {
		rules = append(rules, Rule{
			Pattern:    "**",
			SourceRoot: assets,
			DestRoot:   l.Dir(classify.ResDir),
			Mode:       PreserveSymlinks,
		})
	}
	return rules
}
