// qpack fetch [path], qpack cache
package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/qobs-build/qpack/internal/fetch"
	"github.com/qobs-build/qpack/internal/msg"
	"github.com/qobs-build/qpack/internal/recipe"
	"github.com/spf13/cobra"
)

func loadCache() *fetch.Cache {
	dir, err := fetch.DefaultCacheDir()
	if err != nil {
		msg.Fatal("could not find the cache directory: %v", err)
	}
	cache, err := fetch.LoadCache(dir)
	if err != nil {
		msg.Fatal("failed to parse source cache: %v", err)
	}
	return cache
}

func doFetch(cmd *cobra.Command, args []string) {
	dir, err := filepath.Abs(targetDir(args))
	if err != nil {
		msg.Fatal("%v", err)
	}
	r, err := recipe.Load(dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if r.Source.Git == "" {
		msg.Warn("%s declares no [source], nothing to fetch", r.Package.Name)
		return
	}

	f, err := fetch.NewFetcher(r.Dir)
	if err != nil {
		msg.Fatal("%v", err)
	}
	f.Update = flagUpdate

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	msg.Step("Fetching", "%s", r.Source.Git)
	srcDir, err := f.Fetch(ctx, r.Source.Git)
	if err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("source of %s is in %s", r.Package.Name, srcDir)
}

func doCacheList(term string) {
	cache := loadCache()

	term = strings.ToLower(term)
	i := 0
	for _, source := range slices.Sorted(maps.Keys(cache.Sources)) {
		path := cache.Sources[source]
		if strings.Contains(strings.ToLower(source), term) ||
			strings.Contains(strings.ToLower(path), term) {
			fmt.Printf("%d. %s -> %s\n", i+1, source, filepath.Join(cache.Dir(), path))
			i++
		}
	}

	if i == 0 {
		msg.Warn("no cached sources match %q", term)
	} else {
		msg.Info("found %d cached sources", i)
	}
}

func doCacheRemove(source string) {
	cache := loadCache()

	// accept the spelling used in recipes too
	if src, err := fetch.Parse(source); err == nil && !src.Local {
		if _, ok := cache.Sources[source]; !ok {
			source = src.String()
		}
	}

	removed, err := cache.Remove(source)
	if err != nil {
		msg.Fatal("failed to remove %s: %v", source, err)
	}
	if !removed {
		msg.Warn("source %s not found", source)
		return
	}
	if err := cache.Save(); err != nil {
		msg.Fatal("failed to save source cache: %v", err)
	}
	msg.Info("removed source %s", source)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [recipe path]",
	Short: "Fetch the recipe's [source] into the source cache",
	Args:  cobra.MaximumNArgs(1),
	Run:   doFetch,
}

var cacheListCmd = &cobra.Command{
	Use:   "list [term]",
	Short: "List cached sources, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := ""
		if len(args) > 0 {
			term = args[0]
		}
		doCacheList(term)
	},
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <source>",
	Short: "Delete a cached source checkout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		doCacheRemove(args[0])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the source cache",
}

func init() {
	// qpack fetch subcommand
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolVar(&flagUpdate, "update", false, "Pull an unpinned source that is already cached")

	// qpack cache subcommand
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheRemoveCmd)
	rootCmd.AddCommand(cacheCmd)
}
