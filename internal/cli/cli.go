// Package cli implements spindlec's command surface: a Cobra root
// command with build and watch subcommands (SPEC_FULL.md §6), grounded
// on the teacher's runtime/cli.CLIHarness (persistent flags on a root
// cobra.Command, RunE closures that translate pipeline failures into
// a returned error rather than calling os.Exit directly).
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/aledsdavies/spindlec/internal/cache"
	"github.com/aledsdavies/spindlec/internal/config"
	"github.com/aledsdavies/spindlec/internal/parser"
	"github.com/aledsdavies/spindlec/internal/pipeline"
	"github.com/aledsdavies/spindlec/internal/sem"
	"github.com/aledsdavies/spindlec/internal/spindle"
)

type flags struct {
	configPath   string
	noCache      bool
	dumpAST      bool
	dumpSem      bool
	dumpGraphviz bool
}

// NewRootCommand builds spindlec's Cobra command tree.
func NewRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "spindlec",
		Short:         "An ahead-of-time toy-C compiler built on a sea-of-nodes IR",
		Version:       "0.1.0",
		SilenceErrors: true, // We handle error printing ourselves
	}

	root.PersistentFlags().StringVar(&f.configPath, "config", "spindlec.yaml", "path to a spindlec.yaml config file")
	root.PersistentFlags().BoolVar(&f.noCache, "no-cache", false, "disable the content-addressed build cache")
	root.PersistentFlags().BoolVar(&f.dumpAST, "dump-ast", true, "print the parse tree")
	root.PersistentFlags().BoolVar(&f.dumpSem, "dump-sem", true, "print the checked CFG")
	root.PersistentFlags().BoolVar(&f.dumpGraphviz, "dump-graphviz", true, "print the optimized Spindle graph as GraphViz DOT")

	root.AddCommand(newBuildCommand(f))
	root.AddCommand(newWatchCommand(f))

	return root
}

func newBuildCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "build <path>",
		Short: "Compile a single source file and print its pipeline stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := loadConfigAndCache(f, false)
			if err != nil {
				cmd.SilenceUsage = true // a runtime failure, not a bad invocation
				return err
			}
			if err := runOnce(cmd.OutOrStdout(), args[0], cfg, store, f); err != nil {
				cmd.SilenceUsage = true // a runtime failure, not a bad invocation
				return err
			}
			return nil
		},
	}
}

func newWatchCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>",
		Short: "Re-run the pipeline whenever the source file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := loadConfigAndCache(f, true)
			if err != nil {
				cmd.SilenceUsage = true // a runtime failure, not a bad invocation
				return err
			}

			path := args[0]
			out := cmd.OutOrStdout()

			if err := runOnce(out, path, cfg, store, f); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				cmd.SilenceUsage = true // a runtime failure, not a bad invocation
				return fmt.Errorf("watch: creating fsnotify watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(path); err != nil {
				cmd.SilenceUsage = true // a runtime failure, not a bad invocation
				return fmt.Errorf("watch: watching %s: %w", path, err)
			}

			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					if err := runOnce(out, path, cfg, store, f); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), err)
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			}
		},
	}
}

func loadConfigAndCache(f *flags, defaultCacheEnabled bool) (*config.Config, *cache.Store, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}

	if f.noCache {
		return cfg, nil, nil
	}

	enabled := cfg.Cache.Enabled || defaultCacheEnabled
	if !enabled {
		return cfg, nil, nil
	}

	store, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}

	return cfg, store, nil
}

// runOnce runs the pipeline once over path and prints whichever dumps
// were requested, in the order spec.md §6 mandates: parse tree, Sem
// IR dump, optimized Spindle GraphViz.
func runOnce(out io.Writer, path string, cfg *config.Config, store *cache.Store, f *flags) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	result, d := pipeline.Run(path, source, pipeline.Options{
		Logger:   slog.Default(),
		Optimize: cfg.Optimize,
		Cache:    store,
	})
	if d != nil {
		return d
	}

	if f.dumpAST {
		printSection(out, "parse tree")
		printASTDump(out, result.Tree)
	}
	if f.dumpSem {
		printSection(out, "sem ir")
		sem.Print(out, result.Func)
	}
	if f.dumpGraphviz && cfg.EmitGraphviz {
		printSection(out, "spindle graphviz")
		spindle.Graphviz(out, result.Spindle)
	}

	return nil
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "=== %s ===\n", title)
}

func printASTDump(out io.Writer, tree *parser.ParseTree) {
	parser.PrintTree(out, tree)
}
