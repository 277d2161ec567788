package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/qpack/internal/msg"
)

// Fetcher clones sources into a cache and hands out their directories
type Fetcher struct {
	Cache *Cache
	// BaseDir resolves relative local sources
	BaseDir string
	// Progress receives git's progress output, nothing if nil
	Progress io.Writer
	// Update pulls unpinned cached sources before reusing them
	Update bool
}

// NewFetcher returns a fetcher over the per-user cache
func NewFetcher(baseDir string) (*Fetcher, error) {
	dir, err := DefaultCacheDir()
	if err != nil {
		return nil, err
	}
	cache, err := LoadCache(dir)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		Cache:    cache,
		BaseDir:  baseDir,
		Progress: &msg.IndentWriter{Indent: "    ", W: msg.Out},
	}, nil
}

// Fetch returns the directory holding spec's tree, cloning it on first use.
func (f *Fetcher) Fetch(ctx context.Context, spec string) (string, error) {
	src, err := Parse(spec)
	if err != nil {
		return "", err
	}

	if src.Local {
		dir := src.URL
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(f.BaseDir, dir)
		}
		if st, err := os.Stat(dir); err != nil {
			return "", err
		} else if !st.IsDir() {
			return "", fmt.Errorf("source %s is not a directory", dir)
		}
		return dir, nil
	}

	key := src.String()
	if dir, ok := f.Cache.Lookup(key); ok {
		if f.Update && !src.IsPinned() {
			if err := f.pull(dir, src); err != nil {
				return "", err
			}
		}
		return dir, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := cacheName(src)
	dir := filepath.Join(f.Cache.Dir(), rel)
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := f.clone(src, dir); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}

	f.Cache.Set(key, rel)
	if err := f.Cache.Save(); err != nil {
		return "", err
	}
	return dir, nil
}

// cacheName is the cache folder of a source: the repository name plus a
// hash of the full source string
func cacheName(src Source) string {
	sum := sha1.Sum([]byte(src.String()))
	name := strings.TrimSuffix(path.Base(filepath.ToSlash(src.URL)), ".git")
	return name + "-" + hex.EncodeToString(sum[:4])
}

func (f *Fetcher) progress() io.Writer {
	if f.Progress == nil {
		return io.Discard
	}
	return f.Progress
}

// clone clones a Git remote into dir and checks out the pinned revision
func (f *Fetcher) clone(src Source, dir string) error {
	cloneOptions := &git.CloneOptions{
		URL:               src.URL,
		Progress:          f.progress(),
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if !src.IsPinned() {
		cloneOptions.Depth = 1 // we can do a shallow clone of the latest commit
	}

	if src.Branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(dir, cloneOptions)
	if err != nil {
		return err
	}

	if src.IsPinned() {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		hash, err := repo.ResolveRevision(plumbing.Revision(src.Revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", src.Revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", src.Revision, err)
		}
	}

	return nil
}

func (f *Fetcher) pull(dir string, src Source) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return err
	}
	w, err := repo.Worktree()
	if err != nil {
		return err
	}
	opts := &git.PullOptions{
		RemoteName: "origin",
		Depth:      1,
		Progress:   f.progress(),
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}
	err = w.Pull(opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("update %s: %w", src, err)
	}
	return nil
}
