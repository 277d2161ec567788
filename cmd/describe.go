// qpack describe [package path]
package cmd

import (
	"os"
	"path/filepath"

	"github.com/qobs-build/qpack/internal/describe"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/spf13/cobra"
)

var flagJSON bool

func doDescribe(cmd *cobra.Command, args []string) {
	path := targetDir(args)
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, describe.Filename)
	}

	d, err := describe.Load(path)
	if err != nil {
		msg.Fatal("failed to read package descriptor: %v", err)
	}

	if flagJSON {
		err = d.WriteJSON(os.Stdout)
	} else {
		err = d.Table(os.Stdout)
	}
	if err != nil {
		msg.Fatal("%v", err)
	}
}

var describeCmd = &cobra.Command{
	Use:   "describe [package path]",
	Short: "Show the descriptor of a packaged variant",
	Long:  `Show the descriptor of a packaged variant. The path is a package folder or its ` + describe.Filename + `.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doDescribe,
}

func init() {
	// qpack describe subcommand
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the raw JSON descriptor")
}
