// qpack [path], qpack build [path]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/qobs-build/qpack/internal/fetch"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/qobs-build/qpack/internal/pack"
	"github.com/qobs-build/qpack/internal/recipe"
	"github.com/spf13/cobra"
)

var (
	flagOptions    []string
	flagAll        bool
	flagOutDir     string
	flagBuildDir   string
	flagJobs       int
	flagTargetOS   string
	flagTargetArch string
	flagGenerator  string
	flagToolchain  string
	flagUpdate     bool
	flagBuildType  EnumValue = NewEnumValue("Release", map[string]string{
		"Debug":          "No optimization, full debug info",
		"Release":        "Optimized, no debug info (default)",
		"RelWithDebInfo": "Optimized with debug info",
		"MinSizeRel":     "Optimized for size",
	})
	flagTool EnumValue = NewEnumValue("cmake", map[string]string{
		"cmake": "Configure, build and install with CMake (default)",
	})
)

func doBuild(cmd *cobra.Command, args []string) {
	overrides, err := parseOverrides(flagOptions)
	if err != nil {
		msg.Fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := pack.Options{
		Overrides:  overrides,
		All:        flagAll,
		BuildType:  flagBuildType.Value(),
		TargetOS:   flagTargetOS,
		TargetArch: flagTargetArch,
		BuildDir:   flagBuildDir,
		OutDir:     flagOutDir,
		Jobs:       flagJobs,
		Generator:  flagGenerator,
		Toolchain:  flagToolchain,
	}
	if cmd.Flags().Changed("tool") {
		opts.Tool = flagTool.Value()
	}

	dir, err := filepath.Abs(targetDir(args))
	if err != nil {
		msg.Fatal("%v", err)
	}
	r, err := recipe.Load(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if r.Source.Git != "" {
		f, err := fetch.NewFetcher(r.Dir)
		if err != nil {
			msg.Fatal("%v", err)
		}
		f.Update = flagUpdate
		opts.Fetcher = f
	}

	p := pack.NewWithRecipe(r, opts)
	results, err := p.Run(ctx)
	if err != nil {
		msg.Fatal("%v", err)
	}
	for _, res := range results {
		msg.Info("packaged %s (%s) in %s", res.Descriptor.Name, res.Resolved, res.Dir)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qpack [recipe path]",
	Short: "Build native packages for every variant of a recipe",
	Long: `qpack resolves a recipe's options, drives the build tool and routes the
produced libraries, headers and assets into a package folder.`,
	Args: cobra.MinimumNArgs(1),
	Run:  doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [recipe path]",
	Short: "Build and package the recipe",
	Long:  `Build and package the recipe. If no recipe path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// qpack build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&flagOptions, "option", "o", nil, "Override an option, as name=value (repeatable)")
	cmd.Flags().BoolVarP(&flagAll, "all", "a", false, "Package every combination of the option matrix")
	cmd.Flags().VarP(&flagBuildType, "build-type", "t", "Build type, one of "+flagBuildType.HelpString())
	cmd.RegisterFlagCompletionFunc("build-type", flagBuildType.CompletionFunc())
	cmd.Flags().Var(&flagTool, "tool", "Build tool, one of "+flagTool.HelpString()+" (default: the recipe's build_system)")
	cmd.RegisterFlagCompletionFunc("tool", flagTool.CompletionFunc())
	cmd.Flags().StringVar(&flagOutDir, "out", "", "Folder receiving the packages (default: <build dir>/package)")
	cmd.Flags().StringVar(&flagBuildDir, "build-dir", "", "Folder holding the build trees (default: <recipe>/build)")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", runtime.NumCPU(), "Parallel build and copy jobs")
	cmd.Flags().StringVar(&flagTargetOS, "target-os", "", "Platform whose naming conventions apply (default: host)")
	cmd.Flags().StringVar(&flagTargetArch, "target-arch", "", "Target architecture (default: host)")
	cmd.Flags().StringVarP(&flagGenerator, "generator", "G", "", "CMake generator, e.g. Ninja")
	cmd.Flags().StringVar(&flagToolchain, "toolchain", "", "CMake toolchain file for cross builds")
	cmd.Flags().BoolVar(&flagUpdate, "update", false, "Pull unpinned [source] checkouts before building")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
