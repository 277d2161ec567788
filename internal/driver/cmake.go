package driver

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/qobs-build/qpack/internal/variant"
)

// CMake drives a CMake project: `cmake -S -B`, `cmake --build` and
// `cmake --install`.
type CMake struct {
	// Bin is the cmake executable. If empty $CMAKE is used, then cmake or
	// cmake3 from PATH.
	Bin       string
	BuildDir  string
	Generator string
	BuildType string
	Toolchain string
	// Jobs is passed as --parallel when positive
	Jobs int
	Env  map[string]string
}

var _ Tool = (*CMake)(nil)
var _ Installer = (*CMake)(nil)

func (c *CMake) Name() string { return "cmake" }

func (c *CMake) Literals() variant.Literals {
	return variant.Literals{True: "ON", False: "OFF"}
}

func (c *CMake) bin() string {
	if c.Bin != "" {
		return c.Bin
	}
	if bin := findExecutable("CMAKE", cmakeNames); bin != "" {
		return bin
	}
	return "cmake" // let exec report it missing
}

func (c *CMake) buildDir() string {
	if c.BuildDir == "" {
		return "build"
	}
	return c.BuildDir
}

// ConfigureArgs returns the arguments of the configure step
func (c *CMake) ConfigureArgs(def variant.Definition, sourceDir string) []string {
	args := []string{"-S", sourceDir, "-B", c.buildDir()}
	if c.Generator != "" {
		args = append(args, "-G", c.Generator)
	}
	for _, d := range def {
		if d.Type != "" {
			args = append(args, "-D"+d.Key+":"+d.Type+"="+d.Value)
			continue
		}
		args = append(args, "-D"+d.Key+"="+d.Value)
	}
	if c.BuildType != "" {
		args = append(args, "-DCMAKE_BUILD_TYPE:STRING="+c.BuildType)
	}
	if c.Toolchain != "" {
		args = append(args, "-DCMAKE_TOOLCHAIN_FILE:FILEPATH="+c.Toolchain)
	}
	return args
}

func (c *CMake) Configure(ctx context.Context, def variant.Definition, sourceDir string, stdout, stderr io.Writer) error {
	if err := os.MkdirAll(c.buildDir(), 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.ConfigureArgs(def, sourceDir), stdout, stderr)
}

func (c *CMake) Compile(ctx context.Context, stdout, stderr io.Writer) error {
	args := []string{"--build", c.buildDir()}
	if c.BuildType != "" {
		args = append(args, "--config", c.BuildType)
	}
	if c.Jobs > 0 {
		args = append(args, "--parallel", strconv.Itoa(c.Jobs))
	}
	return c.run(ctx, args, stdout, stderr)
}

func (c *CMake) Install(ctx context.Context, prefix string, stdout, stderr io.Writer) error {
	args := []string{"--install", c.buildDir(), "--prefix", prefix}
	if c.BuildType != "" {
		args = append(args, "--config", c.BuildType)
	}
	return c.run(ctx, args, stdout, stderr)
}

func (c *CMake) run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, c.bin(), args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.Env)
	}
	return cmd.Run()
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	maps.Copy(envMap, override)

	out := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		out = append(out, k+"="+envMap[k])
	}
	return out
}

// Lookup returns a build tool by name
func Lookup(name string) (Tool, error) {
	switch name {
	case "", "cmake":
		return &CMake{}, nil
	}
	return nil, fmt.Errorf("unknown build system %q, known: cmake", name)
}
