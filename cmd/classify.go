// qpack classify <file>...
package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/qobs-build/qpack/internal/classify"
	"github.com/spf13/cobra"
)

var flagClassifyOS string

func doClassify(cmd *cobra.Command, args []string) {
	c := classify.For(flagClassifyOS)
	for _, file := range args {
		set := c.Classify(file)
		var buckets []string
		for _, tag := range set.Tags() {
			for _, b := range c.Buckets(tag) {
				buckets = append(buckets, string(b))
			}
		}
		fmt.Printf("%s %s -> %s\n", file, color.HiCyanString(set.String()), strings.Join(buckets, ", "))
	}
}

var classifyCmd = &cobra.Command{
	Use:   "classify <file>...",
	Short: "Show how file names are classified and where they are packaged",
	Args:  cobra.MinimumNArgs(1),
	Run:   doClassify,
}

func init() {
	// qpack classify subcommand
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&flagClassifyOS, "target-os", runtime.GOOS, "Platform whose naming conventions apply")
}
