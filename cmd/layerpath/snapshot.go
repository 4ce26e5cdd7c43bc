// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
)

// newSnapshotCommand creates the `layerpath snapshot` command tree.
func newSnapshotCommand(app *App, state *cliState) *cobra.Command {
	snapCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the persisted directory scan",
		Long: `Manage the persisted directory scan.

The snapshot records which segments the application overrides and which
packages ship with the core, so later runs skip the directory walk. It is
stored at cache.directory/cache.environment_file and is only written when
absent; clear it after adding or removing override files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var force bool
	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Scan the installation and write the snapshot if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}
			if s.layout.SnapshotPath == "" {
				return snapshotDisabledError()
			}

			var stats environment.ScanStats
			hook := environment.WithScanHook(func(st environment.ScanStats) { stats = st })

			wrote := true
			if force {
				err = environment.New(s.layout, s.options(hook)...).WriteSnapshot(s.layout.SnapshotPath)
			} else {
				wrote, err = environment.SaveSnapshotIfAbsent(s.layout, s.options(hook)...)
			}
			if err != nil {
				return snapshotWriteError(s.layout.SnapshotPath, err)
			}

			if !wrote {
				fmt.Fprintf(app.stdout, "%s Snapshot already exists at %s (use --force to rewrite)\n", SubtitleStyle.Render("-"), s.layout.SnapshotPath)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Wrote snapshot to %s (%d overrides, %d core packages)\n",
				SuccessStyle.Render("✓"), s.layout.SnapshotPath, stats.Overrides, stats.CorePackages)
			return nil
		},
	}
	saveCmd.Flags().BoolVarP(&force, "force", "f", false, "rewrite the snapshot even if it exists")
	snapCmd.AddCommand(saveCmd)

	snapCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the snapshot so the next run rescans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}
			if s.layout.SnapshotPath == "" {
				return snapshotDisabledError()
			}
			if err := environment.New(s.layout, s.options()...).ClearSnapshot(); err != nil {
				return snapshotWriteError(s.layout.SnapshotPath, err)
			}
			fmt.Fprintf(app.stdout, "%s Cleared snapshot at %s\n", SuccessStyle.Render("✓"), s.layout.SnapshotPath)
			return nil
		},
	})

	snapCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the contents of the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := state.session(app)
			if err != nil {
				return err
			}
			if s.layout.SnapshotPath == "" {
				return snapshotDisabledError()
			}

			snap, err := environment.ReadSnapshot(s.layout.SnapshotPath)
			if err != nil {
				return snapshotReadError(s.layout.SnapshotPath, err)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Environment snapshot"))
			fmt.Fprintln(app.stdout)
			fmt.Fprintf(app.stdout, "%s      %s\n", KeyStyle.Render("file:"), s.layout.SnapshotPath)
			fmt.Fprintf(app.stdout, "%s   %d\n", KeyStyle.Render("version:"), snap.Version)
			if snap.Generated != "" {
				fmt.Fprintf(app.stdout, "%s %s\n", KeyStyle.Render("generated:"), snap.Generated)
			}
			printList(app, "overrides", snap.Overrides)
			printList(app, "core_packages", snap.CorePackages)
			fmt.Fprintf(app.stdout, "%s\n", KeyStyle.Render("package_overrides:"))
			if len(snap.PackageOverrides) == 0 {
				fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
			}
			for _, segment := range slices.Sorted(maps.Keys(snap.PackageOverrides)) {
				fmt.Fprintf(app.stdout, "  %s -> %s\n", segment, snap.PackageOverrides[segment])
			}
			return nil
		},
	})

	snapCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the snapshot file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := state.cfg.Layout(state.flags.baseDir)
			if err != nil {
				return err
			}
			if layout.SnapshotPath == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(snapshot disabled)"))
				return nil
			}
			fmt.Fprintln(app.stdout, layout.SnapshotPath)
			return nil
		},
	})

	return snapCmd
}

func printList(app *App, key string, values []string) {
	fmt.Fprintf(app.stdout, "%s\n", KeyStyle.Render(key+":"))
	if len(values) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none)"))
	}
	for _, v := range values {
		fmt.Fprintf(app.stdout, "  - %s\n", v)
	}
}

func snapshotDisabledError() error {
	return issue.NewErrorContext().
		WithOperation("use environment snapshot").
		WithSuggestion("set cache.enabled: true in the configuration file").
		WithIssue(issue.SnapshotUnavailableId).
		Wrap(environment.ErrSnapshotDisabled).
		BuildError()
}

func snapshotWriteError(path string, err error) error {
	id := issue.SnapshotUnavailableId
	suggestions := []string{"check that the cache directory exists and is writable"}
	if errors.Is(err, fs.ErrPermission) {
		id = issue.PermissionDeniedId
		suggestions = append(suggestions, "run layerpath as the user that owns the installation")
	}
	return issue.NewErrorContext().
		WithOperation("update environment snapshot").
		WithResource(path).
		WithSuggestions(suggestions...).
		WithIssue(id).
		Wrap(err).
		BuildError()
}

func snapshotReadError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return issue.NewErrorContext().
			WithOperation("read environment snapshot").
			WithResource(path).
			WithSuggestion("run 'layerpath snapshot save' to create it").
			WithIssue(issue.SnapshotUnavailableId).
			Wrap(err).
			BuildError()
	}
	return issue.NewErrorContext().
		WithOperation("read environment snapshot").
		WithResource(path).
		WithSuggestions(
			"run 'layerpath snapshot clear' to discard it",
			"run 'layerpath snapshot save' to write a fresh one",
		).
		WithIssue(issue.SnapshotCorruptId).
		Wrap(err).
		BuildError()
}
