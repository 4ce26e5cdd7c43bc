// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
	"github.com/invowk/layerpath/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "layerpath"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment variables that override config keys,
	// e.g. LAYERPATH_LAYOUT_BASE_DIR.
	EnvPrefix = "LAYERPATH"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		URLs: URLConfig{
			Assets:      environment.DefaultAssetsURL,
			Application: environment.DefaultApplicationURL,
		},
		PackagesDirName:  environment.DefaultPackagesDirName,
		CheckedDirs:      environment.DefaultCheckedDirs(),
		IgnoreFiles:      []string{"__MACOSX"},
		IgnorePatterns:   []IgnorePattern{},
		PackageOverrides: []PackageOverride{},
		Cache: CacheConfig{
			Enabled:         true,
			EnvironmentFile: environment.DefaultSnapshotFile,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// ConfigDir returns the layerpath configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Layout converts the configuration into an environment layout. A non-empty
// baseDir replaces the configured base directory; when both are empty the
// current directory is used. Relative directories are resolved against the
// base directory.
func (c *Config) Layout(baseDir string) (environment.Layout, error) {
	if baseDir == "" {
		baseDir = c.Dirs.BaseDir
	}
	if baseDir == "" {
		baseDir = "."
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return environment.Layout{}, fmt.Errorf("resolve base directory: %w", err)
	}

	patterns := make([]string, 0, len(c.IgnorePatterns))
	for _, p := range c.IgnorePatterns {
		patterns = append(patterns, string(p))
	}

	layout := environment.Layout{
		BaseDir:         base,
		ApplicationDir:  resolveDir(base, c.Dirs.ApplicationDir),
		CoreDir:         resolveDir(base, c.Dirs.CoreDir),
		CorePackagesDir: resolveDir(base, c.Dirs.CorePackagesDir),
		PackagesDir:     resolveDir(base, c.Dirs.PackagesDir),
		AssetsURL:       c.URLs.Assets,
		ApplicationURL:  c.URLs.Application,
		RelDir:          c.URLs.Rel,
		PackagesDirName: c.PackagesDirName,
		CheckedDirs:     slices.Clone(c.CheckedDirs),
		IgnoreFiles:     slices.Clone(c.IgnoreFiles),
		IgnorePatterns:  patterns,
	}.WithDefaults()

	if c.Cache.Enabled {
		dir := resolveDir(base, c.Cache.Directory)
		if dir == "" {
			dir = filepath.Join(layout.ApplicationDir, "files", "cache")
		}
		file := c.Cache.EnvironmentFile
		if file == "" {
			file = environment.DefaultSnapshotFile
		}
		layout.SnapshotPath = filepath.Join(dir, file)
	}

	return layout, nil
}

// resolveDir makes dir absolute relative to base. Empty stays empty.
func resolveDir(base, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	// An explicit --config file is used exclusively.
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'layerpath config init' to create a default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, loadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir := opts.ConfigDirPath
		if cfgDir == "" {
			var err error
			if cfgDir, err = ConfigDir(); err != nil {
				return nil, err
			}
		}

		// The config directory wins over ./config.cue.
		for _, candidate := range []string{
			filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt),
			ConfigFileName + "." + ConfigFileExt,
		} {
			if !fileExists(candidate) {
				continue
			}
			if err := loadCUEIntoViper(v, candidate); err != nil {
				return nil, loadError(candidate, err)
			}
			resolvedPath = candidate
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Path = resolvedPath

	// Constraints CUE cannot express: glob syntax.
	if valid, errs := cfg.IsValid(); !valid {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check 'ignore_patterns' for unbalanced brackets or braces").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'layerpath config --help' for configuration options").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// setDefaults registers every config key with viper so that environment
// overrides apply during Unmarshal.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("layout.base_dir", defaults.Dirs.BaseDir)
	v.SetDefault("layout.application_dir", defaults.Dirs.ApplicationDir)
	v.SetDefault("layout.core_dir", defaults.Dirs.CoreDir)
	v.SetDefault("layout.core_packages_dir", defaults.Dirs.CorePackagesDir)
	v.SetDefault("layout.packages_dir", defaults.Dirs.PackagesDir)
	v.SetDefault("urls.assets", defaults.URLs.Assets)
	v.SetDefault("urls.application", defaults.URLs.Application)
	v.SetDefault("urls.rel", defaults.URLs.Rel)
	v.SetDefault("packages_dirname", defaults.PackagesDirName)
	v.SetDefault("checked_dirs", defaults.CheckedDirs)
	v.SetDefault("ignore_files", defaults.IgnoreFiles)
	v.SetDefault("ignore_patterns", defaults.IgnorePatterns)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.directory", defaults.Cache.Directory)
	v.SetDefault("cache.environment_file", defaults.Cache.EnvironmentFile)
	v.SetDefault("package_overrides", defaults.PackageOverrides)
	v.SetDefault("ui.color_scheme", defaults.UI.ColorScheme)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// cueutil.ParseAndDecode is not used here: the config decodes to a map for
// Viper and is validated non-concretely because every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// DefaultConfigPath returns the location of the user config file.
func DefaultConfigPath() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// CreateDefaultConfig writes a default config file unless one exists, or
// always when force is set. It returns the file path.
func CreateDefaultConfig(force bool) (string, error) {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(cfgPath); err == nil && !force {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// layerpath configuration file\n")
	sb.WriteString("// Relative directories are resolved against layout.base_dir.\n\n")

	sb.WriteString("layout: {\n")
	writeOptionalString(&sb, "\t", "base_dir", cfg.Dirs.BaseDir)
	writeOptionalString(&sb, "\t", "application_dir", cfg.Dirs.ApplicationDir)
	writeOptionalString(&sb, "\t", "core_dir", cfg.Dirs.CoreDir)
	writeOptionalString(&sb, "\t", "core_packages_dir", cfg.Dirs.CorePackagesDir)
	writeOptionalString(&sb, "\t", "packages_dir", cfg.Dirs.PackagesDir)
	sb.WriteString("}\n")

	sb.WriteString("\nurls: {\n")
	fmt.Fprintf(&sb, "\tassets: %q\n", cfg.URLs.Assets)
	fmt.Fprintf(&sb, "\tapplication: %q\n", cfg.URLs.Application)
	fmt.Fprintf(&sb, "\trel: %q\n", cfg.URLs.Rel)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\npackages_dirname: %q\n", cfg.PackagesDirName)
	writeStringList(&sb, "checked_dirs", cfg.CheckedDirs)
	writeStringList(&sb, "ignore_files", cfg.IgnoreFiles)
	patterns := make([]string, 0, len(cfg.IgnorePatterns))
	for _, p := range cfg.IgnorePatterns {
		patterns = append(patterns, p.String())
	}
	writeStringList(&sb, "ignore_patterns", patterns)

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Cache.Enabled)
	writeOptionalString(&sb, "\t", "directory", cfg.Cache.Directory)
	fmt.Fprintf(&sb, "\tenvironment_file: %q\n", cfg.Cache.EnvironmentFile)
	sb.WriteString("}\n")

	if len(cfg.PackageOverrides) == 0 {
		sb.WriteString("\npackage_overrides: []\n")
	} else {
		sb.WriteString("\npackage_overrides: [\n")
		for _, o := range cfg.PackageOverrides {
			fmt.Fprintf(&sb, "\t{segment: %q, package: %q},\n", o.Segment, o.Package)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

func writeOptionalString(sb *strings.Builder, indent, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "%s%s: %q\n", indent, key, value)
}

func writeStringList(sb *strings.Builder, key string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(sb, "\n%s: []\n", key)
		return
	}
	fmt.Fprintf(sb, "\n%s: [\n", key)
	for _, value := range values {
		fmt.Fprintf(sb, "\t%q,\n", value)
	}
	sb.WriteString("]\n")
}
