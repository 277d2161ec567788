package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/qobs-build/qpack/internal/describe"
	"github.com/qobs-build/qpack/internal/driver"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/qobs-build/qpack/internal/variant"
)

const testRecipe = `
[package]
name = "SimGraphicsNative"
version = "1.1.3"
subfolder = "{{ name }}"
assets = "{{ name }}/assets/public/{{ name }}"

[options]
shared = { default = true, define = "BUILD_SHARED" }
raytracing = false

[definitions]
BUILD_TEST = false

[[rules]]
pattern = "LICENSE"
root = "source"
to = "licenses"
`

// fakeTool stands in for cmake: compiling drops the given files into the
// build tree.
type fakeTool struct {
	buildDir   string
	outputs    map[string]string
	installs   map[string]string
	failPhase  driver.Phase
	sourceDir  string
	definition variant.Definition
}

func (f *fakeTool) Name() string               { return "fake" }
func (f *fakeTool) Literals() variant.Literals { return variant.DefaultLiterals }

func (f *fakeTool) Configure(ctx context.Context, def variant.Definition, sourceDir string, stdout, stderr io.Writer) error {
	f.sourceDir, f.definition = sourceDir, def
	if f.failPhase == driver.PhaseConfigure {
		return errors.New("configure exploded")
	}
	return nil
}

func (f *fakeTool) Compile(ctx context.Context, stdout, stderr io.Writer) error {
	if f.failPhase == driver.PhaseCompile {
		fmt.Fprintln(stderr, "sim.cpp:1: error: boom")
		return errors.New("compile exploded")
	}
	return writeFiles(f.buildDir, f.outputs)
}

func (f *fakeTool) Install(ctx context.Context, prefix string, stdout, stderr io.Writer) error {
	return writeFiles(prefix, f.installs)
}

func writeFiles(root string, files map[string]string) error {
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	dir   string
	tools []*fakeTool
	// installs is what every tool installs into its prefix
	installs map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	old := msg.Out
	msg.Out = io.Discard
	t.Cleanup(func() { msg.Out = old })

	dir := t.TempDir()
	assets := "SimGraphicsNative/assets/public/SimGraphicsNative/"
	files := map[string]string{
		"Qpack.toml":                       testRecipe,
		"LICENSE":                          "MIT",
		"SimGraphicsNative/CMakeLists.txt": "project(SimGraphicsNative)",
		assets + "texture.png":             "png",
		assets + "shaders/basic.vert":      "glsl",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{dir: dir}
}

func (fx *fixture) packer(t *testing.T, opts Options, outputs map[string]string, failPhase driver.Phase) *Packer {
	t.Helper()
	opts.Stdout, opts.Stderr = io.Discard, io.Discard
	opts.NewTool = func(buildDir string) (driver.Tool, error) {
		tool := &fakeTool{buildDir: buildDir, outputs: outputs, installs: fx.installs, failPhase: failPhase}
		fx.tools = append(fx.tools, tool)
		return tool, nil
	}
	p, err := New(fx.dir, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(files)
	return files
}

func TestPack_Darwin(t *testing.T) {
	fx := newFixture(t)
	p := fx.packer(t, Options{TargetOS: "darwin", TargetArch: "arm64", BuildType: "Release"}, map[string]string{
		"lib/foo.dylib":  "dylib",
		"lib/foo.a":      "archive",
		"include/foo.h":  "header",
		"CMakeCache.txt": "cache",
		"obj/renderer.o": "object",
	}, "")

	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]

	want := []string{
		"bin/foo.dylib",
		"include/foo.h",
		"lib/foo.a",
		"lib/foo.dylib",
		"lib/pkgconfig/SimGraphicsNative.pc",
		"licenses/LICENSE",
		"qpack.json",
		"res/SimGraphicsNative/shaders/basic.vert",
		"res/SimGraphicsNative/texture.png",
	}
	if diff := cmp.Diff(want, listTree(t, res.Dir)); diff != "" {
		t.Errorf("package tree mismatch (-want +got):\n%s", diff)
	}

	tool := fx.tools[0]
	if want := filepath.Join(fx.dir, "SimGraphicsNative"); tool.sourceDir != want {
		t.Errorf("configured %q, want %q", tool.sourceDir, want)
	}
	wantDef := variant.Definition{
		{Key: "BUILD_SHARED", Value: "true", Type: variant.TypeBool},
		{Key: "BUILD_TEST", Value: "false", Type: variant.TypeBool},
		{Key: "raytracing", Value: "false", Type: variant.TypeBool},
	}
	if diff := cmp.Diff(wantDef, tool.definition); diff != "" {
		t.Errorf("definition mismatch (-want +got):\n%s", diff)
	}

	stored, err := describe.Load(filepath.Join(res.Dir, describe.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(res.Descriptor, *stored); diff != "" {
		t.Errorf("stored descriptor mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"foo"}, stored.Libs); diff != "" {
		t.Errorf("libs mismatch (-want +got):\n%s", diff)
	}
	if stored.OS != "darwin" || stored.Arch != "arm64" || filepath.Base(res.Dir) != stored.PackageID {
		t.Errorf("descriptor = %+v, dir = %s", stored, res.Dir)
	}
}

func TestPack_DarwinSharedLibraryIsLinkable(t *testing.T) {
	fx := newFixture(t)
	p := fx.packer(t, Options{TargetOS: "darwin"}, map[string]string{
		"lib/libSimGraphicsNative.dylib": "dylib",
	}, "")

	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	desc := results[0].Descriptor
	if diff := cmp.Diff([]string{"SimGraphicsNative"}, desc.Libs); diff != "" {
		t.Errorf("libs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"lib"}, desc.LibDirs); diff != "" {
		t.Errorf("lib dirs mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(desc.PkgConfig(), "-lSimGraphicsNative") {
		t.Errorf("pkg-config file does not link the library:\n%s", desc.PkgConfig())
	}
}

func TestPack_InstallTreeIsPackaged(t *testing.T) {
	fx := newFixture(t)
	fx.installs = map[string]string{
		"lib/libSimGraphicsNative.a":                                "archive",
		"lib/cmake/SimGraphicsNative/SimGraphicsNativeConfig.cmake": "config",
		"share/doc/SimGraphicsNative/README":                        "docs",
		"include/sim/sim.h":                                         "header",
	}
	p := fx.packer(t, Options{TargetOS: "linux"}, nil, "")

	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := listTree(t, results[0].Dir)
	for _, want := range []string{
		"include/sim/sim.h",
		"lib/cmake/SimGraphicsNative/SimGraphicsNativeConfig.cmake",
		"lib/libSimGraphicsNative.a",
		"share/doc/SimGraphicsNative/README",
	} {
		if !slices.Contains(got, want) {
			t.Errorf("missing %s in %v", want, got)
		}
	}
	if diff := cmp.Diff([]string{"SimGraphicsNative"}, results[0].Descriptor.Libs); diff != "" {
		t.Errorf("libs mismatch (-want +got):\n%s", diff)
	}
}

func TestPack_BadRuleModeFailsBeforeBuild(t *testing.T) {
	fx := newFixture(t)
	recipe := testRecipe + "mode = \"flaten\"\n"
	if err := os.WriteFile(filepath.Join(fx.dir, "Qpack.toml"), []byte(recipe), 0o644); err != nil {
		t.Fatal(err)
	}
	p := fx.packer(t, Options{}, map[string]string{"lib/foo.a": "x"}, "")

	_, err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unknown copy mode") {
		t.Fatalf("expected an unknown copy mode error, got %v", err)
	}
	if len(fx.tools) != 0 {
		t.Error("build tool was created for a recipe with an invalid rule")
	}
}

func TestPack_RerunIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	outputs := map[string]string{"lib/libsim.so": "so"}
	opts := Options{TargetOS: "linux"}

	first, err := fx.packer(t, opts, outputs, "").Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// a stale file from an older run must not survive
	stale := filepath.Join(first[0].Dir, "lib", "libold.so")
	if err := os.WriteFile(stale, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := fx.packer(t, opts, outputs, "").Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Dir != second[0].Dir {
		t.Errorf("package folder moved: %s -> %s", first[0].Dir, second[0].Dir)
	}
	if diff := cmp.Diff(first[0].Descriptor, second[0].Descriptor); diff != "" {
		t.Errorf("descriptor changed (-first +second):\n%s", diff)
	}
	if _, err := os.Stat(stale); !errors.Is(err, fs.ErrNotExist) {
		t.Error("stale file survived a rerun")
	}
	// .so lands in both bin and lib on linux
	got := listTree(t, second[0].Dir)
	for _, want := range []string{"bin/libsim.so", "lib/libsim.so"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing %s in %v", want, got)
		}
	}
}

func TestPack_CompileFailureSkipsRouting(t *testing.T) {
	fx := newFixture(t)
	p := fx.packer(t, Options{}, map[string]string{"lib/foo.a": "x"}, driver.PhaseCompile)

	_, err := p.Run(context.Background())
	if !errors.Is(err, driver.ErrCompile) {
		t.Fatalf("expected ErrCompile, got %v", err)
	}
	var phaseErr *driver.PhaseError
	if !errors.As(err, &phaseErr) || !strings.Contains(phaseErr.Output, "error: boom") {
		t.Errorf("diagnostics not captured: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fx.dir, "build", "package")); !errors.Is(err, fs.ErrNotExist) {
		t.Error("package folder was created after a failed build")
	}
}

func TestPack_ConfigurationErrorBeforeBuild(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
	}{
		{"unknown option", map[string]string{"vulkan": "on"}},
		{"bad boolean", map[string]string{"shared": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			p := fx.packer(t, Options{Overrides: tt.overrides}, nil, "")
			_, err := p.Run(context.Background())
			if !errors.Is(err, variant.ErrConfiguration) {
				t.Fatalf("expected a configuration error, got %v", err)
			}
			if len(fx.tools) != 0 {
				t.Error("build tool was created for an invalid configuration")
			}
		})
	}
}

func TestVariants_All(t *testing.T) {
	fx := newFixture(t)

	p := fx.packer(t, Options{All: true}, nil, "")
	all, err := p.Variants()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("got %d variants, want 4", len(all))
	}

	p = fx.packer(t, Options{All: true, Overrides: map[string]string{"shared": "off"}}, nil, "")
	pinned, err := p.Variants()
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, r := range pinned {
		got = append(got, r.String())
	}
	want := []string{"raytracing=false,shared=false", "raytracing=true,shared=false"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_AllVariantsGetTheirOwnFolder(t *testing.T) {
	fx := newFixture(t)
	p := fx.packer(t, Options{All: true, TargetOS: "linux"}, map[string]string{"lib/libsim.a": "a"}, "")

	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	dirs := map[string]bool{}
	for _, r := range results {
		dirs[r.Dir] = true
	}
	if len(results) != 4 || len(dirs) != 4 {
		t.Errorf("got %d results in %d folders, want 4 in 4", len(results), len(dirs))
	}
}

type stubFetcher struct {
	dir  string
	spec string
}

func (s *stubFetcher) Fetch(ctx context.Context, spec string) (string, error) {
	s.spec = spec
	return s.dir, nil
}

func TestPack_FetchedSource(t *testing.T) {
	fx := newFixture(t)
	withSource := testRecipe + "\n[source]\ngit = \"gh:wumo/SimGraphicsNative#v1.1.3\"\n"
	if err := os.WriteFile(filepath.Join(fx.dir, "Qpack.toml"), []byte(withSource), 0o644); err != nil {
		t.Fatal(err)
	}

	// the fetched tree is a copy of the fixture without the recipe
	fetched := t.TempDir()
	if err := os.CopyFS(fetched, os.DirFS(fx.dir)); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(fetched, "Qpack.toml")); err != nil {
		t.Fatal(err)
	}

	f := &stubFetcher{dir: fetched}
	p := fx.packer(t, Options{Fetcher: f, TargetOS: "linux"}, nil, "")
	results, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.spec != "gh:wumo/SimGraphicsNative#v1.1.3" {
		t.Errorf("fetched %q", f.spec)
	}
	if want := filepath.Join(fetched, "SimGraphicsNative"); fx.tools[0].sourceDir != want {
		t.Errorf("configured %q, want %q", fx.tools[0].sourceDir, want)
	}
	if _, err := os.Stat(filepath.Join(results[0].Dir, "res", "SimGraphicsNative", "texture.png")); err != nil {
		t.Errorf("assets not taken from the fetched tree: %v", err)
	}
}
