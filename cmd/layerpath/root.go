// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for layerpath.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/config"
	"github.com/invowk/layerpath/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// rootFlagValues holds the persistent flags of the root command.
	rootFlagValues struct {
		configPath string
		baseDir    string
		verbose    bool
	}

	// cliState is filled by the root pre-run hook and read by subcommands.
	cliState struct {
		flags rootFlagValues
		cfg   *config.Config
	}
)

// NewRootCommand builds the layerpath command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd, _ := newRootCommand(app)
	return rootCmd
}

func newRootCommand(app *App) (*cobra.Command, *cliState) {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "layerpath",
		Short: "Resolve layered resource overrides",
		Long: TitleStyle.Render("layerpath") + SubtitleStyle.Render(" - Resolve layered resource overrides") + `

layerpath decides which physical file and public URL serve a resource
segment such as "blocks/autonav/view.php". The application override
directory wins over packages, and packages win over the core defaults.

` + SubtitleStyle.Render("Examples:") + `
  layerpath resolve blocks/autonav/view.php       Show the winning layer
  layerpath url css/main.css --package calendar   Public URL inside a package
  layerpath snapshot save                         Persist the directory scan
  layerpath watch                                 Refresh the snapshot on change`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), state.flags.configPath)
			if err != nil {
				return err
			}
			state.cfg = cfg
			if cfg.UI.Verbose {
				state.flags.verbose = true
			}
			slog.SetDefault(newLogger(app.stderr, state.flags.verbose))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&state.flags.configPath, "config", "", "config file (default is $HOME/.config/layerpath/config.cue)")
	rootCmd.PersistentFlags().StringVar(&state.flags.baseDir, "base-dir", "", "installation root (overrides layout.base_dir)")
	rootCmd.PersistentFlags().BoolVarP(&state.flags.verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		newResolveCommand(app, state),
		newPathCommand(app, state),
		newURLCommand(app, state),
		newOverridesCommand(app, state),
		newPackagesCommand(app, state),
		newSnapshotCommand(app, state),
		newWatchCommand(app, state),
		newConfigCommand(app, state),
	)

	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)
	return rootCmd, state
}

// session opens the installation described by the loaded configuration.
func (s *cliState) session(app *App) (*session, error) {
	return app.newSession(s.cfg, s.flags.baseDir)
}

// colorScheme returns the glamour style used for catalog issues.
func (s *cliState) colorScheme() string {
	if s.cfg == nil || s.cfg.UI.ColorScheme == "" {
		return string(config.ColorSchemeAuto)
	}
	return string(s.cfg.UI.ColorScheme)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the production App, runs the command tree and exits with a
// non-zero status on failure. It is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(context.Background(), app, os.Args[1:]))
}

// run executes the command tree with args and returns the process exit code.
func run(ctx context.Context, app *App, args []string) int {
	rootCmd, state := newRootCommand(app)
	rootCmd.SetArgs(args)

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			fmt.Fprintln(w, ErrorStyle.Render("error:")+" "+formatErrorForDisplay(err, state.flags.verbose))
			if state.flags.verbose {
				renderCatalogIssue(w, err, state.colorScheme())
			}
		}),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// newLogger returns the slog logger installed for library packages. Library
// code logs through slog; the charm handler renders it for humans.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "layerpath",
		Level:  level,
	})
	return slog.New(handler)
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderCatalogIssue writes the Markdown catalog entry linked to err, if any.
func renderCatalogIssue(w io.Writer, err error, style string) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		return
	}
	entry := ae.CatalogIssue()
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(style)
	if renderErr != nil {
		slog.Debug("rendering catalog issue failed", "issue", entry.Id(), "error", renderErr)
		return
	}
	fmt.Fprint(w, strings.TrimRight(rendered, "\n")+"\n")
}
