// qpack options [path]
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/qobs-build/qpack/internal/recipe"
	"github.com/spf13/cobra"
)

func doOptions(cmd *cobra.Command, args []string) {
	dir, err := filepath.Abs(targetDir(args))
	if err != nil {
		msg.Fatal("%v", err)
	}
	r, err := recipe.Load(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Option", "Kind", "Default", "Allowed", "Define")
	for _, o := range r.Matrix.Options() {
		allowed := "true, false"
		if !o.Default.IsBool() {
			allowed = strings.Join(o.Values, ", ")
		}
		if err := table.Append([]string{o.Name, o.Kind.String(), o.Default.String(), allowed, o.Key()}); err != nil {
			msg.Fatal("%v", err)
		}
	}
	if err := table.Render(); err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("%s %s has %d options spanning %d variants", r.Package.Name, r.Package.Version, r.Matrix.Len(), r.Matrix.CombinationCount())
}

var optionsCmd = &cobra.Command{
	Use:   "options [recipe path]",
	Short: "List the options a recipe declares",
	Args:  cobra.MaximumNArgs(1),
	Run:   doOptions,
}

func init() {
	// qpack options subcommand
	rootCmd.AddCommand(optionsCmd)
}
