// Package driver runs the external build tool for one variant.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/qobs-build/qpack/internal/variant"
)

// Tool is the external build tool. Implementations write the tool's output
// to the given writers untouched.
type Tool interface {
	Name() string
	// Literals are the tool's spelling of boolean values
	Literals() variant.Literals
	Configure(ctx context.Context, def variant.Definition, sourceDir string, stdout, stderr io.Writer) error
	Compile(ctx context.Context, stdout, stderr io.Writer) error
}

// Installer is implemented by tools that can install their outputs into a
// prefix after compiling.
type Installer interface {
	Install(ctx context.Context, prefix string, stdout, stderr io.Writer) error
}

// Phase is a step of a build
type Phase string

const (
	PhaseConfigure Phase = "configure"
	PhaseCompile   Phase = "compile"
	PhaseInstall   Phase = "install"
)

var (
	ErrConfigure = errors.New("configure failed")
	ErrCompile   = errors.New("compile failed")
	ErrInstall   = errors.New("install failed")
)

var phaseErrors = map[Phase]error{
	PhaseConfigure: ErrConfigure,
	PhaseCompile:   ErrCompile,
	PhaseInstall:   ErrInstall,
}

// PhaseError reports a failed build phase. It matches ErrConfigure,
// ErrCompile or ErrInstall depending on Phase.
type PhaseError struct {
	Phase    Phase
	Tool     string
	ExitCode int
	// Output is the tail of what the tool printed
	Output string
	Err    error
}

func (e *PhaseError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: %s failed with exit status %d", e.Tool, e.Phase, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Tool, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() []error {
	return []error{phaseErrors[e.Phase], e.Err}
}

// Result describes a finished build
type Result struct {
	Tool       string
	SourceDir  string
	InstallDir string
	Duration   time.Duration
}

// Driver runs configure, compile and (if the tool supports it and
// InstallDir is set) install, in that order.
type Driver struct {
	Tool       Tool
	InstallDir string
	// Stdout and Stderr receive the tool's output, os.Stdout and os.Stderr
	// if nil
	Stdout io.Writer
	Stderr io.Writer
}

// Build blocks until every phase finished. The first failing phase stops
// the build and is returned as a *PhaseError.
func (d *Driver) Build(ctx context.Context, def variant.Definition, sourceDir string) (*Result, error) {
	if d.Tool == nil {
		return nil, errors.New("driver: no build tool")
	}
	start := time.Now()

	err := d.run(PhaseConfigure, func(stdout, stderr io.Writer) error {
		return d.Tool.Configure(ctx, def, sourceDir, stdout, stderr)
	})
	if err != nil {
		return nil, err
	}

	err = d.run(PhaseCompile, func(stdout, stderr io.Writer) error {
		return d.Tool.Compile(ctx, stdout, stderr)
	})
	if err != nil {
		return nil, err
	}

	installer, ok := d.Tool.(Installer)
	if ok && d.InstallDir != "" {
		err = d.run(PhaseInstall, func(stdout, stderr io.Writer) error {
			return installer.Install(ctx, d.InstallDir, stdout, stderr)
		})
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Tool:       d.Tool.Name(),
		SourceDir:  sourceDir,
		InstallDir: d.InstallDir,
		Duration:   time.Since(start),
	}, nil
}

// run executes one phase, passing output through to the operator while
// keeping its tail for the error.
func (d *Driver) run(phase Phase, fn func(stdout, stderr io.Writer) error) error {
	stdout, stderr := d.Stdout, d.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	capture := newTailBuffer(maxCapture)
	err := fn(io.MultiWriter(stdout, capture), io.MultiWriter(stderr, capture))
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &PhaseError{
		Phase:    phase,
		Tool:     d.Tool.Name(),
		ExitCode: exitCode,
		Output:   capture.String(),
		Err:      err,
	}
}
