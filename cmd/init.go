// qpack init [name]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/spf13/cobra"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	} else {
		msg.Warn("%s already exists, leaving it alone", filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func recipeTemplate(name, source string) string {
	sourceSection := ""
	if source != "" {
		sourceSection = fmt.Sprintf("\n[source]\ngit = %q\n", source)
	}
	return `[package]
name = "` + name + `"
version = "0.1.0"
requires = []
build_system = "cmake"
# folder holding CMakeLists.txt, relative to the source root
subfolder = "."
# packaged into res/` + name + `, symlinks kept
# assets = "assets"
` + sourceSection + `
[options]
shared = { default = true, define = "BUILD_SHARED_LIBS" }

[definitions]
BUILD_TESTING = false

# [definitions."target_os == 'windows'"]
# USE_WIN32_THREADS = true

# [[rules]]
# pattern = "**/*.pdb"
# from = "bin"
# to = "bin"
# mode = "flatten"
# when = "options.shared"
`
}

// initIn writes a recipe into an existing directory
func initIn(dir, name, source string) {
	writefile(recipeTemplate(name, source), dir, "Qpack.toml")

	// .gitignore
	writefile(`build/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Printf("You can now do %s to list the options, or %s to build the package.\n", color.HiCyanString(programName+" options "+dir), color.HiCyanString(programName+" build "+dir))
}

var flagInitSource string

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a recipe in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], flagInitSource)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a recipe in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), flagInitSource)
	},
}

func init() {
	// qpack init subcommand
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&flagInitSource, "source", "s", "", "Git source of the package, e.g. gh:owner/repo#v1.0.0")

	// qpack new subcommand
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVarP(&flagInitSource, "source", "s", "", "Git source of the package, e.g. gh:owner/repo#v1.0.0")
}
