package recipe

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/qobs-build/qpack/internal/variant"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Env is what recipe expressions see
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	BuildType  string            `expr:"build_type"`
	Environ    map[string]string `expr:"environ"`
	Options    map[string]any    `expr:"options"`
	Name       string            `expr:"name"`
	Version    string            `expr:"version"`
	basedir    string
}

// NewEnv returns the environment of one build of r with the given options.
// Empty targetOS and targetArch default to the host.
func (r *Recipe) NewEnv(res variant.Resolved, buildType, targetOS, targetArch string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}
	if targetOS == "" {
		targetOS = runtime.GOOS
	}
	if targetArch == "" {
		targetArch = runtime.GOARCH
	}

	return Env{
		TargetOS:   targetOS,
		TargetArch: targetArch,
		BuildType:  buildType,
		Environ:    environ,
		Options:    res.Map(),
		Name:       r.Package.Name,
		Version:    r.Package.Version,
		basedir:    r.Dir,
	}
}

// In returns env with file helpers resolving against dir, for recipes
// whose sources are fetched elsewhere.
func (env Env) In(dir string) Env {
	env.basedir = dir
	return env
}

func (env Env) path(path string) string {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		panic(fmt.Sprintf("path %q is outside of package directory %q", path, env.basedir))
	}
	return fullPath
}

// Patch applies a diff-match-patch patch to a file of the package and
// reports whether any hunk applied.
func (env Env) Patch(path, patchText string) bool {
	fullPath := env.path(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	applied := false
	for _, ok := range results {
		applied = applied || ok
	}
	if !applied {
		return false // nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		panic(err)
	}
	return true
}

func (env Env) ReadFile(path string) string {
	data, err := os.ReadFile(env.path(path))
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (env Env) Exists(path string) bool {
	_, err := os.Stat(env.path(path))
	return err == nil
}
