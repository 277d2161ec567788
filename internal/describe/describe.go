// Package describe derives the package descriptor handed to consumers of a
// packaged variant.
package describe

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/qobs-build/qpack/internal/classify"
	"github.com/qobs-build/qpack/internal/router"
	"github.com/qobs-build/qpack/internal/variant"
)

// Info is what the descriptor knows beyond the routed artifacts
type Info struct {
	Name      string
	Version   string
	Options   variant.Resolved
	BuildType string
	OS        string
	Arch      string
	Requires  []string
	Layout    router.Layout
}

// Descriptor is the consumer-facing summary of a package. Directories and
// files are relative to the package root, slash separated.
type Descriptor struct {
	Name        string            `json:"name"`
	Version     string            `json:"version,omitempty"`
	PackageID   string            `json:"package_id"`
	Options     map[string]string `json:"options"`
	BuildType   string            `json:"build_type,omitempty"`
	OS          string            `json:"os"`
	Arch        string            `json:"arch,omitempty"`
	Requires    []string          `json:"requires,omitempty"`
	Libs        []string          `json:"libs"`
	IncludeDirs []string          `json:"include_dirs,omitempty"`
	LibDirs     []string          `json:"lib_dirs,omitempty"`
	BinDirs     []string          `json:"bin_dirs,omitempty"`
	ResDirs     []string          `json:"res_dirs,omitempty"`
	Files       []string          `json:"files"`
}

// Describe reads the routed artifacts and reports the package's logical
// library names and the directories that ended up populated. Libraries are
// taken from the library directory only.
func Describe(info Info, arts []router.Artifact) Descriptor {
	d := Descriptor{
		Name:      info.Name,
		Version:   info.Version,
		PackageID: PackageID(info),
		Options:   info.Options.Strings(),
		BuildType: info.BuildType,
		OS:        info.OS,
		Arch:      info.Arch,
		Requires:  slices.Clone(info.Requires),
		Libs:      []string{},
		Files:     []string{},
	}

	libDir := info.Layout.Dir(classify.LibDir)
	dirs := map[classify.Bucket]bool{}
	for _, art := range arts {
		rel, err := filepath.Rel(info.Layout.Root, art.Dest)
		if err != nil {
			continue
		}
		d.Files = append(d.Files, filepath.ToSlash(rel))

		for _, b := range []classify.Bucket{classify.BinDir, classify.LibDir, classify.IncludeDir, classify.ResDir} {
			if within(info.Layout.Dir(b), art.Dest) {
				dirs[b] = true
			}
		}

		if filepath.Dir(art.Dest) != libDir || !art.Tags.IsLibrary() {
			continue
		}
		if name, ok := LibName(filepath.Base(art.Dest)); ok {
			d.Libs = append(d.Libs, name)
		}
	}

	slices.Sort(d.Libs)
	d.Libs = slices.Compact(d.Libs)
	slices.Sort(d.Files)
	d.Files = slices.Compact(d.Files)

	rel := func(b classify.Bucket) []string {
		if !dirs[b] {
			return nil
		}
		r, _ := filepath.Rel(info.Layout.Root, info.Layout.Dir(b))
		return []string{filepath.ToSlash(r)}
	}
	d.IncludeDirs = rel(classify.IncludeDir)
	d.LibDirs = rel(classify.LibDir)
	d.BinDirs = rel(classify.BinDir)
	d.ResDirs = rel(classify.ResDir)
	return d
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// linkable suffixes, longest first
var libSuffixes = []string{".dll.a", ".dylib", ".lib", ".so", ".a"}

// LibName returns the name a consumer links against: libfoo.a, libfoo.so,
// libfoo.dylib and libfoo.dll.a give "foo", foo.lib gives "foo". Versioned
// shared objects and runtime-only files are not linkable by name.
func LibName(filename string) (string, bool) {
	lower := strings.ToLower(filename)
	for _, ext := range libSuffixes {
		if !strings.HasSuffix(lower, ext) {
			continue
		}
		name := filename[:len(filename)-len(ext)]
		if ext != ".lib" {
			name = strings.TrimPrefix(name, "lib")
		}
		if name == "" {
			return "", false
		}
		return name, true
	}
	return "", false
}

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/qobs-build/qpack"))

// PackageID identifies a binary package: the same recipe, options and
// target always give the same ID, and any difference gives another.
func PackageID(info Info) string {
	key := fmt.Sprintf("%s/%s:%s;build_type=%s;os=%s;arch=%s",
		info.Name, info.Version, info.Options, info.BuildType, info.OS, info.Arch)
	return uuid.NewSHA1(namespace, []byte(key)).String()
}
