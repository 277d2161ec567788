// Package fetch brings a recipe's declared source tree into the workspace.
package fetch

import (
	"errors"
	"net/url"
	"strings"
)

var shortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var (
	ErrIllegalSource = errors.New("empty or illegal source string")
	ErrArchive       = errors.New("archive sources are not supported, use a git remote")
)

// Source is a parsed source string
type Source struct {
	// URL is the clone URL, or a filesystem path when Local is set
	URL      string
	Branch   string
	Revision string
	Local    bool
}

// IsPinned reports whether the source names a fixed commit or tag
func (s Source) IsPinned() bool { return s.Revision != "" }

func (s Source) String() string {
	out := s.URL
	if s.Branch != "" {
		out += "@" + s.Branch
	}
	if s.Revision != "" {
		out += "#" + s.Revision
	}
	return out
}

// Parse understands
//
//	gh:wumo/SimGraphicsNative#v1.1.3
//	git:https://example.com/sim.git@develop
//	https://github.com/wumo/SimGraphicsNative.git
//	../SimGraphicsNative
func Parse(spec string) (Source, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Source{}, ErrIllegalSource
	}

	// git:https://github.com/wumo/SimGraphicsNative.git
	if rest, ok := strings.CutPrefix(spec, gitPrefix); ok {
		if rest == "" {
			return Source{}, ErrIllegalSource
		}
		return parseGitURL(rest), nil
	}

	// gh:wumo/SimGraphicsNative
	for shortcut, base := range shortcuts {
		if rest, ok := strings.CutPrefix(spec, shortcut); ok {
			if rest == "" {
				return Source{}, ErrIllegalSource
			}
			return parseGitURL(base + rest), nil
		}
	}

	if isURL(spec) {
		if isArchive(spec) {
			return Source{}, ErrArchive
		}
		return parseGitURL(spec), nil
	}

	// otherwise it's a path
	return Source{URL: spec, Local: true}, nil
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func isArchive(u string) bool {
	for _, ext := range []string{".zip", ".tar.gz", ".tgz", ".tar.xz", ".tar.bz2"} {
		if strings.HasSuffix(strings.ToLower(u), ext) {
			return true
		}
	}
	return false
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res Source) {
	base, rev, _ := strings.Cut(rawURL, "#")
	res.Revision = rev

	// the branch separator is the last @ after the host, so that
	// git@host:path style remotes stay intact
	if i := strings.LastIndex(base, "@"); i > strings.LastIndex(base, "/") {
		res.URL, res.Branch = base[:i], base[i+1:]
	} else {
		res.URL = base
	}

	if !strings.HasSuffix(res.URL, ".git") {
		res.URL += ".git"
	}
	return
}
