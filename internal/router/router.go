// Package router copies build outputs into a package layout.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/qobs-build/qpack/internal/classify"
	"golang.org/x/sync/errgroup"
)

// CopyError reports an I/O failure while routing
type CopyError struct {
	Op   string
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }

// Artifact is a file placed into the package by a rule
type Artifact struct {
	Dest    string
	Source  string
	Rule    Rule
	Index   int // position of Rule in the routed sequence
	Tags    classify.Set
	Symlink bool
}

// Progress receives the bytes copied while routing
type Progress interface {
	io.Writer
	SetTotal(n int64)
	Finish()
}

type Router struct {
	// Workers bounds concurrent copies, runtime.NumCPU() if zero
	Workers    int
	Classifier classify.Classifier
	Progress   Progress
}

// copyJob is a single planned copy
type copyJob struct {
	art     Artifact
	size    int64
	dropped bool
}

// Route copies the files matched by rules and returns what was placed, in
// rule order and then path order. When several matches share a destination
// the last one wins. Missing source roots yield nothing. The first I/O
// failure aborts routing; files copied until then are left in place.
func (r *Router) Route(ctx context.Context, rules []Rule) ([]Artifact, error) {
	jobs, err := r.plan(rules)
	if err != nil {
		return nil, err
	}

	copied, err := r.execute(ctx, jobs)
	if err != nil {
		return nil, err
	}

	arts := make([]Artifact, 0, len(jobs))
	for i, job := range jobs {
		if copied[i] {
			arts = append(arts, job.art)
		}
	}
	return arts, nil
}

func (r *Router) classifier() classify.Classifier {
	if r.Classifier.OS() == "" {
		return classify.For(runtime.GOOS)
	}
	return r.Classifier
}

// plan enumerates every rule in order and resolves destination clashes
// before anything is written, so the outcome doesn't depend on copy order.
func (r *Router) plan(rules []Rule) ([]copyJob, error) {
	c := r.classifier()

	var jobs []copyJob
	byDest := make(map[string]int)

	for i, rule := range rules {
		matches, err := match(rule)
		if err != nil {
			return nil, err
		}

		for _, rel := range matches {
			src := filepath.Join(rule.SourceRoot, filepath.FromSlash(rel))
			var dst string
			if rule.Mode == Flatten {
				dst = filepath.Join(rule.DestRoot, path.Base(rel))
			} else {
				dst = filepath.Join(rule.DestRoot, filepath.FromSlash(rel))
			}

			job := copyJob{art: Artifact{
				Dest:   dst,
				Source: src,
				Rule:   rule,
				Index:  i,
				Tags:   c.Classify(dst),
			}}

			info, err := os.Lstat(src)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, &CopyError{Op: "stat", Path: src, Err: err}
			}
			if info.Mode()&fs.ModeSymlink != 0 && rule.Mode == PreserveSymlinks {
				job.art.Symlink = true
			} else if info.Mode().IsRegular() {
				job.size = info.Size()
			}

			if prev, ok := byDest[dst]; ok {
				jobs[prev].dropped = true
			}
			byDest[dst] = len(jobs)
			jobs = append(jobs, job)
		}
	}

	return slices.DeleteFunc(jobs, func(j copyJob) bool { return j.dropped }), nil
}

// match returns the slash-separated paths under rule.SourceRoot matching
// rule.Pattern, sorted.
func match(rule Rule) ([]string, error) {
	info, err := os.Stat(rule.SourceRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &CopyError{Op: "stat", Path: rule.SourceRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &CopyError{Op: "glob", Path: rule.SourceRoot, Err: errors.New("not a directory")}
	}

	opts := []doublestar.GlobOption{doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors()}
	if rule.Mode == PreserveSymlinks {
		opts = append(opts, doublestar.WithNoFollow())
	}
	matches, err := doublestar.Glob(os.DirFS(rule.SourceRoot), rule.Pattern, opts...)
	if err != nil {
		return nil, &CopyError{Op: "glob", Path: filepath.Join(rule.SourceRoot, rule.Pattern), Err: err}
	}
	slices.Sort(matches)
	return matches, nil
}

// execute runs the planned copies in parallel. copied[i] is false when
// jobs[i]'s source vanished after planning.
func (r *Router) execute(ctx context.Context, jobs []copyJob) ([]bool, error) {
	copied := make([]bool, len(jobs))
	if len(jobs) == 0 {
		return copied, nil
	}

	var progress io.Writer = io.Discard
	if r.Progress != nil {
		var total int64
		for _, job := range jobs {
			total += job.size
		}
		r.Progress.SetTotal(total)
		progress = r.Progress
		defer r.Progress.Finish()
	}

	limit := r.Workers
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, job := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := copyArtifact(job.art, progress)
			copied[i] = ok
			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return copied, nil
}

// copyArtifact places a single file. It returns false without an error if
// the source no longer exists.
func copyArtifact(art Artifact, progress io.Writer) (bool, error) {
	dir := filepath.Dir(art.Dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, &CopyError{Op: "mkdir", Path: dir, Err: err}
	}

	if art.Symlink {
		return copySymlink(art.Source, art.Dest)
	}

	in, err := os.Open(art.Source)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &CopyError{Op: "open", Path: art.Source, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, &CopyError{Op: "stat", Path: art.Source, Err: err}
	}

	// never write through a link left by an earlier run
	if err := removeSymlink(art.Dest); err != nil {
		return false, err
	}

	out, err := os.OpenFile(art.Dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return false, &CopyError{Op: "create", Path: art.Dest, Err: err}
	}
	if _, err := io.Copy(io.MultiWriter(out, progress), in); err != nil {
		out.Close()
		return false, &CopyError{Op: "copy", Path: art.Dest, Err: err}
	}
	if err := out.Close(); err != nil {
		return false, &CopyError{Op: "close", Path: art.Dest, Err: err}
	}
	if err := os.Chmod(art.Dest, info.Mode().Perm()); err != nil {
		return false, &CopyError{Op: "chmod", Path: art.Dest, Err: err}
	}
	return true, nil
}

func copySymlink(src, dst string) (bool, error) {
	target, err := os.Readlink(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &CopyError{Op: "readlink", Path: src, Err: err}
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, &CopyError{Op: "remove", Path: dst, Err: err}
	}
	if err := os.Symlink(target, dst); err != nil {
		return false, &CopyError{Op: "symlink", Path: dst, Err: err}
	}
	return true, nil
}

func removeSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil {
		return &CopyError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
