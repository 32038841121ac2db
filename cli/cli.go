// Package cli wires the mold command line: moldfile discovery, the cobra
// command tree, and the translation of runner errors into exit codes.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moldlang/mold/cli/internal/engine"
	"github.com/moldlang/mold/cli/internal/resolver"
	"github.com/moldlang/mold/cli/internal/scope"
)

// Version is the tool version, gated against moldfile version declarations.
const Version = "1.0.0"

// Names tried, in order, in each directory when discovering a moldfile.
var moldfileNames = []string{"moldfile", "Moldfile", "build.mold"}

type options struct {
	file   string
	debug  bool
	format string
}

// Execute runs the mold CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mold: %v\n", err)
		return ExitCode(err)
	}
	return 0
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "mold [recipe] [args...]",
		Short:   "mold is a declarative task runner",
		Long:    "mold runs recipes from a moldfile: a small declarative language\nfor project tasks with variables, guards and imports.",
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := loadNamespace(opts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				renderCatalog(cmd.OutOrStdout(), ns)
				return nil
			}
			return runRecipe(cmd.Context(), ns, args[0], args[1:], opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "moldfile to use instead of discovering one")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.Flags().SetInterspersed(false)

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newListCommand(opts))
	root.AddCommand(newExplainCommand(opts))
	return root
}

func newRunCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <recipe> [args...]",
		Short: "Run a recipe",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := loadNamespace(opts)
			if err != nil {
				return err
			}
			return runRecipe(cmd.Context(), ns, args[0], args[1:], opts)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newListCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := loadNamespace(opts)
			if err != nil {
				return err
			}
			switch opts.format {
			case "", "text":
				renderCatalog(cmd.OutOrStdout(), ns)
				return nil
			case "yaml":
				return renderCatalogYAML(cmd.OutOrStdout(), ns)
			default:
				return fmt.Errorf("unknown format %q (want text or yaml)", opts.format)
			}
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text or yaml")
	return cmd
}

func newExplainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <recipe>",
		Short: "Show what a recipe would do without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := loadNamespace(opts)
			if err != nil {
				return err
			}
			return renderExplain(cmd.OutOrStdout(), ns, args[0])
		},
	}
}

func runRecipe(ctx context.Context, ns *resolver.Namespace, name string, args []string, opts *options) error {
	eng := engine.New(ns, newLogger(opts))
	return eng.Execute(ctx, name, args)
}

func loadNamespace(opts *options) (*resolver.Namespace, error) {
	path := opts.file
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path, err = Discover(cwd)
		if err != nil {
			return nil, err
		}
	}
	r := &resolver.Resolver{ToolVersion: Version}
	return r.Resolve(path, scope.NewRoot())
}

// Discover walks from start upward to the filesystem root looking for a
// moldfile by any of its accepted names.
func Discover(start string) (string, error) {
	dir := start
	for {
		for _, name := range moldfileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no moldfile found in %s or any parent directory", start)
		}
		dir = parent
	}
}

func newLogger(opts *options) *slog.Logger {
	level := slog.LevelWarn
	if opts.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
