// Package classify sorts build outputs into buckets by their file names.
package classify

import (
	"path"
	"slices"
	"strings"
)

// Tag is a kind of build output
type Tag uint8

const (
	DynamicLibrary Tag = 1 << iota
	StaticLibrary
	ImportLibrary
	DebugSymbol
	GenericResource
)

var tagNames = map[Tag]string{
	DynamicLibrary:  "dynamic-library",
	StaticLibrary:   "static-library",
	ImportLibrary:   "import-library",
	DebugSymbol:     "debug-symbol",
	GenericResource: "generic-resource",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return "unknown"
}

// Set is a set of tags
type Set uint8

func (s Set) Has(t Tag) bool { return s&Set(t) != 0 }

// Tags lists the members of s in ascending order
func (s Set) Tags() []Tag {
	var tags []Tag
	for t := DynamicLibrary; t <= GenericResource; t <<= 1 {
		if s.Has(t) {
			tags = append(tags, t)
		}
	}
	return tags
}

func (s Set) String() string {
	tags := s.Tags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return strings.Join(names, "|")
}

// IsLibrary reports whether s holds something a linker consumes.
func (s Set) IsLibrary() bool {
	return s.Has(DynamicLibrary) || s.Has(StaticLibrary) || s.Has(ImportLibrary)
}

// Bucket is a destination directory of the package layout
type Bucket string

const (
	BinDir     Bucket = "bin"
	LibDir     Bucket = "lib"
	IncludeDir Bucket = "include"
	ResDir     Bucket = "res"
)

// suffix maps a file name ending to a tag. A suffix ending in ".*" also
// matches a trailing version, e.g. ".so.*" matches "libz.so.1.3".
type suffix struct {
	ext string
	tag Tag
}

var platforms = map[string][]suffix{
	"linux": {
		{".so", DynamicLibrary},
		{".so.*", DynamicLibrary},
		{".a", StaticLibrary},
		{".debug", DebugSymbol},
	},
	"darwin": {
		{".dylib", DynamicLibrary},
		{".a", StaticLibrary},
	},
	"windows": {
		{".dll", DynamicLibrary},
		{".lib", StaticLibrary},
		{".a", StaticLibrary}, // mingw
		{".dll.a", ImportLibrary},
		{".pdb", DebugSymbol},
	},
}

// Any is the platform name whose table is the union of all known platforms
const Any = "any"

// Classifier classifies file names for one target platform
type Classifier struct {
	goos     string
	suffixes []suffix
}

// For returns the classifier for goos. Unknown platforms get the union of
// every known table.
func For(goos string) Classifier {
	if s, ok := platforms[goos]; ok {
		return Classifier{goos: goos, suffixes: s}
	}
	var union []suffix
	for _, name := range []string{"linux", "darwin", "windows"} {
		for _, s := range platforms[name] {
			if !slices.Contains(union, s) {
				union = append(union, s)
			}
		}
	}
	return Classifier{goos: Any, suffixes: union}
}

// New builds a classifier from an explicit suffix table, e.g. for a
// toolchain with its own naming. The same suffix may appear under several
// tags, in which case files with it are ambiguous.
func New(goos string, table map[Tag][]string) Classifier {
	c := Classifier{goos: goos}
	for _, t := range Set(0xff).Tags() {
		for _, ext := range table[t] {
			c.suffixes = append(c.suffixes, suffix{ext: strings.ToLower(ext), tag: t})
		}
	}
	return c
}

func (c Classifier) OS() string { return c.goos }

// Classify tags filename by its suffix alone. The result always has exactly
// one member: the longest matching suffix decides, ties between different
// tags and unmatched names yield GenericResource.
func (c Classifier) Classify(filename string) Set {
	name := strings.ToLower(path.Base(strings.ReplaceAll(filename, `\`, "/")))

	best, bestLen, tie := Tag(0), 0, false
	for _, s := range c.suffixes {
		n := s.match(name)
		switch {
		case n == 0 || n < bestLen:
		case n > bestLen:
			best, bestLen, tie = s.tag, n, false
		case s.tag != best:
			tie = true
		}
	}
	if best == 0 || tie {
		return Set(GenericResource)
	}
	return Set(best)
}

// match returns the length of the matched suffix, 0 if it does not match
func (s suffix) match(name string) int {
	if ext, ok := strings.CutSuffix(s.ext, ".*"); ok {
		i := strings.LastIndex(name, ext+".")
		if i <= 0 || !isVersion(name[i+len(ext)+1:]) {
			return 0
		}
		return len(name) - i
	}
	if len(name) > len(s.ext) && strings.HasSuffix(name, s.ext) {
		return len(s.ext)
	}
	return 0
}

// isVersion reports whether v looks like "1", "1.2" or "1.2.3"
func isVersion(v string) bool {
	if v == "" {
		return false
	}
	for part := range strings.SplitSeq(v, ".") {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return false
		}
	}
	return true
}

// Patterns returns doublestar globs matching every file tagged t on this
// platform.
func (c Classifier) Patterns(t Tag) []string {
	var pats []string
	for _, s := range c.suffixes {
		if s.tag == t {
			pats = append(pats, "**/*"+s.ext)
		}
	}
	return pats
}

// Buckets returns where files tagged t belong. Outside windows the linker
// consumes shared objects directly, so they land in both bin and lib.
func (c Classifier) Buckets(t Tag) []Bucket {
	switch t {
	case DynamicLibrary:
		if c.goos == "windows" {
			return []Bucket{BinDir}
		}
		return []Bucket{BinDir, LibDir}
	case StaticLibrary, ImportLibrary:
		return []Bucket{LibDir}
	case DebugSymbol:
		return []Bucket{BinDir}
	default:
		return []Bucket{ResDir}
	}
}
