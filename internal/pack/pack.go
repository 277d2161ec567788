// Package pack runs the whole pipeline for a recipe: resolve the variant,
// build it, route the outputs into a package folder and describe it.
package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/qobs-build/qpack/internal/classify"
	"github.com/qobs-build/qpack/internal/describe"
	"github.com/qobs-build/qpack/internal/driver"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/qobs-build/qpack/internal/recipe"
	"github.com/qobs-build/qpack/internal/router"
	"github.com/qobs-build/qpack/internal/variant"
)

// Fetcher hands out the directory of a declared source
type Fetcher interface {
	Fetch(ctx context.Context, spec string) (string, error)
}

type Options struct {
	// Overrides are name=value option overrides. With All they pin options
	// while the rest of the matrix varies.
	Overrides map[string]string
	All       bool

	BuildType  string
	TargetOS   string
	TargetArch string

	// BuildDir holds the per-variant build trees, <recipe>/build if empty
	BuildDir string
	// OutDir holds the package folders, <BuildDir>/package if empty
	OutDir string
	// Jobs bounds build and copy parallelism, 0 lets the tools decide
	Jobs int

	// Tool overrides the recipe's build_system
	Tool      string
	Generator string
	Toolchain string
	// NewTool creates the build tool of a variant. If nil the tool is
	// looked up by name.
	NewTool func(buildDir string) (driver.Tool, error)
	// Fetcher fetches [source] when the recipe declares one
	Fetcher Fetcher

	// Stdout and Stderr receive the build tool's output
	Stdout io.Writer
	Stderr io.Writer
}

// Packer packs variants of one recipe
type Packer struct {
	Recipe *recipe.Recipe
	opts   Options
}

// Result is one packed variant
type Result struct {
	Resolved   variant.Resolved
	Dir        string
	Descriptor describe.Descriptor
	Artifacts  []router.Artifact
}

// New loads the recipe in dir
func New(dir string, opts Options) (*Packer, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	r, err := recipe.Load(dir)
	if err != nil {
		return nil, err
	}
	return NewWithRecipe(r, opts), nil
}

func NewWithRecipe(r *recipe.Recipe, opts Options) *Packer {
	if opts.BuildDir == "" {
		opts.BuildDir = filepath.Join(r.Dir, "build")
	}
	if opts.OutDir == "" {
		opts.OutDir = filepath.Join(opts.BuildDir, "package")
	}
	return &Packer{Recipe: r, opts: opts}
}

// Variants returns the configurations Run packs. Every override is checked
// against the matrix first, so a bad override fails before any build.
func (p *Packer) Variants() ([]variant.Resolved, error) {
	pinned, err := variant.Resolve(p.Recipe.Matrix, p.opts.Overrides)
	if err != nil {
		return nil, err
	}
	if !p.opts.All || p.Recipe.Matrix.Len() == 0 {
		return []variant.Resolved{pinned}, nil
	}

	var out []variant.Resolved
	for _, combo := range p.Recipe.Matrix.Combinations() {
		if matches(combo, pinned, p.opts.Overrides) {
			out = append(out, combo)
		}
	}
	return out, nil
}

func matches(combo, pinned variant.Resolved, overrides map[string]string) bool {
	for name := range overrides {
		want, _ := pinned.Get(name)
		got, _ := combo.Get(name)
		if !got.Equal(want) {
			return false
		}
	}
	return true
}

// Run packs every variant, one after another. The first failure stops the
// run; results of the variants packed so far are returned with it.
func (p *Packer) Run(ctx context.Context) ([]*Result, error) {
	variants, err := p.Variants()
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(variants))
	for i, res := range variants {
		if len(variants) > 1 {
			msg.Step("Variant", "%d/%d %s", i+1, len(variants), res)
		}
		result, err := p.Pack(ctx, res)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Pack builds and packages a single variant
func (p *Packer) Pack(ctx context.Context, res variant.Resolved) (*Result, error) {
	r := p.Recipe
	env := r.NewEnv(res, p.opts.BuildType, p.opts.TargetOS, p.opts.TargetArch)
	inst, err := r.Instantiate(env)
	if err != nil {
		return nil, err
	}

	info := describe.Info{
		Name:      inst.Package.Name,
		Version:   inst.Package.Version,
		Options:   res,
		BuildType: p.opts.BuildType,
		OS:        env.TargetOS,
		Arch:      env.TargetArch,
		Requires:  inst.Package.Requires,
	}
	id := describe.PackageID(info)
	msg.Step("Resolving", "%s %s (%s)", info.Name, info.Version, res)

	sourceRoot, err := p.sourceRoot(ctx)
	if err != nil {
		return nil, err
	}
	if err := inst.RunPrebuild(env.In(sourceRoot)); err != nil {
		return nil, err
	}

	workDir := filepath.Join(p.opts.BuildDir, id)
	buildDir := filepath.Join(workDir, "build")
	installDir := filepath.Join(workDir, "install")

	tool, err := p.newTool(inst, buildDir)
	if err != nil {
		return nil, err
	}
	def := variant.MakeDefinition(res, tool.Literals(), inst.Definitions)

	pkgDir := filepath.Join(p.opts.OutDir, id)
	info.Layout = router.Layout{Root: pkgDir, Project: info.Name}
	c := classify.For(env.TargetOS)
	rules, err := p.rules(inst, c, info.Layout, sourceRoot, buildDir, installDir)
	if err != nil {
		return nil, err
	}

	label := tool.Name()
	if _, ok := tool.(*driver.CMake); ok {
		if cxx := driver.FindCompiler(true); cxx != "" {
			label += " (" + filepath.Base(cxx) + ")"
		}
	}
	msg.Step("Building", "%s with %s", info.Name, label)
	d := &driver.Driver{
		Tool:       tool,
		InstallDir: installDir,
		Stdout:     p.opts.Stdout,
		Stderr:     p.opts.Stderr,
	}
	if _, err := d.Build(ctx, def, filepath.Join(sourceRoot, inst.Package.Subfolder)); err != nil {
		return nil, err
	}

	// a package folder only ever holds one run's output
	if err := os.RemoveAll(pkgDir); err != nil {
		return nil, err
	}

	msg.Step("Packing", "%s into %s", info.Name, pkgDir)
	progress := msg.NewProgressBar(0, 4, msg.Out)
	rt := &router.Router{Workers: p.opts.Jobs, Classifier: c, Progress: progress}
	arts, err := rt.Route(ctx, rules)
	if err != nil {
		return nil, err
	}

	desc := describe.Describe(info, arts)
	if err := writeDescriptor(desc, pkgDir); err != nil {
		return nil, err
	}
	msg.Step("Finished", "%s: %d files, libs %v", id, len(arts), desc.Libs)

	return &Result{Resolved: res, Dir: pkgDir, Descriptor: desc, Artifacts: arts}, nil
}

func (p *Packer) sourceRoot(ctx context.Context) (string, error) {
	spec := p.Recipe.Source.Git
	if spec == "" {
		return p.Recipe.Dir, nil
	}
	if p.opts.Fetcher == nil {
		return "", errors.New("recipe declares a [source] but no fetcher is configured")
	}
	msg.Step("Fetching", "%s", spec)
	dir, err := p.opts.Fetcher.Fetch(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source: %w", err)
	}
	return dir, nil
}

func (p *Packer) newTool(inst *recipe.Instance, buildDir string) (driver.Tool, error) {
	if p.opts.NewTool != nil {
		return p.opts.NewTool(buildDir)
	}
	name := p.opts.Tool
	if name == "" {
		name = inst.Package.BuildSystem
	}
	tool, err := driver.Lookup(name)
	if err != nil {
		return nil, err
	}
	if cm, ok := tool.(*driver.CMake); ok {
		cm.BuildDir = buildDir
		cm.Generator = p.opts.Generator
		cm.BuildType = p.opts.BuildType
		cm.Toolchain = p.opts.Toolchain
		cm.Jobs = p.opts.Jobs
	}
	return tool, nil
}

func writeDescriptor(desc describe.Descriptor, pkgDir string) error {
	if err := os.MkdirAll(filepath.Join(pkgDir, describe.PkgConfigDir), 0o755); err != nil {
		return err
	}
	if err := desc.Save(filepath.Join(pkgDir, describe.Filename)); err != nil {
		return err
	}
	pc := filepath.Join(pkgDir, describe.PkgConfigDir, desc.Name+".pc")
	return os.WriteFile(pc, []byte(desc.PkgConfig()), 0o644)
}
