// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
	"github.com/invowk/layerpath/internal/watch"
)

func newWatchCommand(app *App, state *cliState) *cobra.Command {
	var (
		debounce time.Duration
		ignore   []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the snapshot whenever overrides or packages change",
		Long: `Rebuild the snapshot whenever overrides or packages change.

layerpath watches every application override root and both package roots.
After a burst of changes settles it discards the snapshot and writes a
fresh one, so other processes pick up the new layout on their next start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}
			if s.layout.SnapshotPath == "" {
				return snapshotDisabledError()
			}
			return runWatch(cmd.Context(), app, s, debounce, ignore)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before the snapshot is rebuilt (default 500ms)")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "additional glob patterns to ignore, relative to each watched root")
	return cmd
}

// runWatch writes the initial snapshot, then rebuilds it after each debounced
// batch of changes until ctx is cancelled.
func runWatch(ctx context.Context, app *App, s *session, debounce time.Duration, ignore []string) error {
	resolver := s.resolver()

	rebuild := func() error {
		s.refreshPackages()
		if err := resolver.ClearSnapshot(); err != nil {
			return err
		}
		_, err := environment.SaveSnapshotIfAbsent(s.layout, s.options()...)
		return err
	}

	if _, err := environment.SaveSnapshotIfAbsent(s.layout, s.options()...); err != nil {
		return snapshotWriteError(s.layout.SnapshotPath, err)
	}

	w, err := watch.New(watch.Config{
		Roots:    s.layout.WatchRoots(),
		Ignore:   ignore,
		Debounce: debounce,
		Logger:   slog.Default(),
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s), rebuilding snapshot\n", KeyStyle.Render("→"), len(changed))
			for _, path := range changed {
				slog.Debug("changed", "path", path)
			}
			if rebuildErr := rebuild(); rebuildErr != nil {
				fmt.Fprintf(app.stderr, "%s %s\n", WarningStyle.Render("warning:"),
					formatErrorForDisplay(snapshotWriteError(s.layout.SnapshotPath, rebuildErr), false))
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Snapshot updated\n", SuccessStyle.Render("✓"))
			return nil
		},
	})
	if err != nil {
		return watchError("start watcher", err)
	}

	fmt.Fprintf(app.stdout, "%s Watching %d root(s) (Ctrl+C to stop)\n", KeyStyle.Render("→"), len(w.Roots()))
	if err := w.Run(ctx); err != nil {
		return watchError("watch installation", err)
	}
	return nil
}

func watchError(operation string, err error) error {
	suggestions := []string{"check the --ignore patterns"}
	if errors.Is(err, watch.ErrResourceExhausted) {
		suggestions = []string{
			"raise the inotify watch limit (fs.inotify.max_user_watches)",
			"exclude large trees with --ignore",
		}
	}
	return issue.NewErrorContext().
		WithOperation(operation).
		WithSuggestions(suggestions...).
		WithIssue(issue.WatchFailedId).
		Wrap(err).
		BuildError()
}
