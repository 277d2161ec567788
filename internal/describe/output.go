package describe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
)

const (
	Filename      = "qpack.json"
	PkgConfigDir  = "lib/pkgconfig"
	pkgConfigTmpl = `prefix=${pcfiledir}/../..
libdir=${prefix}/lib
includedir=${prefix}/include

Name: %s
Description: %s packaged by qpack
Version: %s
`
)

func (d Descriptor) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Save writes the descriptor to path
func (d Descriptor) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	bufw := bufio.NewWriter(f)
	if err := d.WriteJSON(bufw); err != nil {
		f.Close()
		return err
	}
	if err := bufw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func Read(rdr io.Reader) (*Descriptor, error) {
	d := new(Descriptor)
	if err := json.NewDecoder(bufio.NewReader(rdr)).Decode(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads a descriptor written by Save
func Load(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// PkgConfig renders a pkg-config file for the package. The file is meant
// to live in lib/pkgconfig of the package.
func (d Descriptor) PkgConfig() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, pkgConfigTmpl, d.Name, d.Name, d.Version)

	sb.WriteString("Libs:")
	if len(d.Libs) > 0 {
		sb.WriteString(" -L${libdir}")
		for _, lib := range d.Libs {
			sb.WriteString(" -l" + lib)
		}
	}
	sb.WriteString("\nCflags:")
	if len(d.IncludeDirs) > 0 {
		sb.WriteString(" -I${includedir}")
	}
	sb.WriteString("\n")
	return sb.String()
}

// Table prints the descriptor as a two column table
func (d Descriptor) Table(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")

	rows := [][]string{
		{"name", d.Name},
		{"version", d.Version},
		{"package id", d.PackageID},
		{"build type", d.BuildType},
		{"os", d.OS},
		{"arch", d.Arch},
	}
	for _, k := range slices.Sorted(maps.Keys(d.Options)) {
		rows = append(rows, []string{"option " + k, d.Options[k]})
	}
	rows = append(rows,
		[]string{"requires", strings.Join(d.Requires, "\n")},
		[]string{"libs", strings.Join(d.Libs, " ")},
		[]string{"include dirs", strings.Join(d.IncludeDirs, " ")},
		[]string{"lib dirs", strings.Join(d.LibDirs, " ")},
		[]string{"bin dirs", strings.Join(d.BinDirs, " ")},
		[]string{"res dirs", strings.Join(d.ResDirs, " ")},
		[]string{"files", fmt.Sprint(len(d.Files))},
	)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}
