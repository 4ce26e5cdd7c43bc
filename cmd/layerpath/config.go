// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/layerpath/internal/config"
)

// newConfigCommand creates the `layerpath config` command tree.
func newConfigCommand(app *App, state *cliState) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage layerpath configuration",
		Long: `Manage layerpath configuration.

Configuration is stored in:
  - Linux: ~/.config/layerpath/config.cue
  - macOS: ~/Library/Application Support/layerpath/config.cue
  - Windows: %APPDATA%\layerpath\config.cue

A config.cue in the current directory is used when the user file is absent.
Every key can be overridden with a LAYERPATH_ environment variable, for
example LAYERPATH_LAYOUT_BASE_DIR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration and the layout derived from it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(app.stdout, state)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(state.cfg))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig(force)
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			cfgPath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(app.stdout, "Config file: %s\n", cfgPath)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, state *cliState) error {
	cfg := state.cfg
	layout, err := cfg.Layout(state.flags.baseDir)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfg.Path != "" {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), cfg.Path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("layout"))
	showValue(w, "base_dir", layout.BaseDir)
	showValue(w, "application_dir", layout.ApplicationDir)
	showValue(w, "core_dir", layout.CoreDir)
	showValue(w, "core_packages_dir", layout.CorePackagesDir)
	showValue(w, "packages_dir", layout.PackagesDir)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("urls"))
	showValue(w, "assets", layout.AssetsURL)
	showValue(w, "application", layout.ApplicationURL)
	showValue(w, "rel", layout.RelDir)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("packages_dirname"), ValueStyle.Render(layout.PackagesDirName))
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("checked_dirs"), ValueStyle.Render(strings.Join(layout.CheckedDirs, ", ")))
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("ignore_files"), ValueStyle.Render(strings.Join(layout.IgnoreFiles, ", ")))
	fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("ignore_patterns"), ValueStyle.Render(strings.Join(layout.IgnorePatterns, ", ")))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("cache"))
	fmt.Fprintf(w, "  enabled: %s\n", ValueStyle.Render(fmt.Sprintf("%v", cfg.Cache.Enabled)))
	showValue(w, "snapshot", layout.SnapshotPath)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("package_overrides"))
	if len(cfg.PackageOverrides) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, o := range cfg.PackageOverrides {
		fmt.Fprintf(w, "  - %s -> %s\n", ValueStyle.Render(o.Segment), ValueStyle.Render(o.Package))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", KeyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", ValueStyle.Render(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(w, "  verbose: %s\n", ValueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))

	return nil
}

func showValue(w io.Writer, key, value string) {
	if value == "" {
		fmt.Fprintf(w, "  %s: %s\n", key, SubtitleStyle.Render("(unset)"))
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", key, ValueStyle.Render(value))
}
