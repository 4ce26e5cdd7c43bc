// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidIgnorePattern is returned when an ignore pattern is not a valid glob.
	ErrInvalidIgnorePattern = errors.New("invalid ignore pattern")
	// ErrInvalidPackageOverride is returned when a package override has an empty field.
	ErrInvalidPackageOverride = errors.New("invalid package override")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// IgnorePattern is a doublestar glob matched against application-relative
	// segments during the override scan.
	IgnorePattern string

	// InvalidIgnorePatternError is returned when an IgnorePattern does not compile.
	InvalidIgnorePatternError struct {
		Value IgnorePattern
	}

	// InvalidPackageOverrideError is returned when a PackageOverride has an
	// empty segment or package handle.
	InvalidPackageOverrideError struct {
		Value PackageOverride
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Dirs locates the installation's directories.
		Dirs DirsConfig `json:"layout" mapstructure:"layout"`
		// URLs are the public URL prefixes matching the directories.
		URLs URLConfig `json:"urls" mapstructure:"urls"`
		// PackagesDirName is the URL path element used for package assets.
		PackagesDirName string `json:"packages_dirname" mapstructure:"packages_dirname"`
		// CheckedDirs are the override roots scanned below the application directory.
		CheckedDirs []string `json:"checked_dirs" mapstructure:"checked_dirs"`
		// IgnoreFiles are entry names the scan never records.
		IgnoreFiles []string `json:"ignore_files" mapstructure:"ignore_files"`
		// IgnorePatterns are globs the scan never records or descends into.
		IgnorePatterns []IgnorePattern `json:"ignore_patterns" mapstructure:"ignore_patterns"`
		// Cache configures the environment snapshot.
		Cache CacheConfig `json:"cache" mapstructure:"cache"`
		// PackageOverrides are declared segment -> package routes.
		PackageOverrides []PackageOverride `json:"package_overrides" mapstructure:"package_overrides"`
		// UI configures the user interface
		UI UIConfig `json:"ui" mapstructure:"ui"`

		// Path is the file the configuration was loaded from; empty for defaults.
		Path string `json:"-" mapstructure:"-"`
	}

	// DirsConfig holds the installation directories. Relative entries are
	// resolved against BaseDir.
	DirsConfig struct {
		BaseDir         string `json:"base_dir" mapstructure:"base_dir"`
		ApplicationDir  string `json:"application_dir" mapstructure:"application_dir"`
		CoreDir         string `json:"core_dir" mapstructure:"core_dir"`
		CorePackagesDir string `json:"core_packages_dir" mapstructure:"core_packages_dir"`
		PackagesDir     string `json:"packages_dir" mapstructure:"packages_dir"`
	}

	// URLConfig holds the public URL prefixes.
	URLConfig struct {
		Assets      string `json:"assets" mapstructure:"assets"`
		Application string `json:"application" mapstructure:"application"`
		Rel         string `json:"rel" mapstructure:"rel"`
	}

	// CacheConfig configures snapshot persistence.
	CacheConfig struct {
		// Enabled turns snapshot persistence on (default: true).
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Directory holds the snapshot; defaults to <application>/files/cache.
		Directory string `json:"directory" mapstructure:"directory"`
		// EnvironmentFile is the snapshot file name.
		EnvironmentFile string `json:"environment_file" mapstructure:"environment_file"`
	}

	// PackageOverride routes a segment to a package.
	PackageOverride struct {
		Segment string `json:"segment" mapstructure:"segment"`
		Package string `json:"package" mapstructure:"package"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for _, p := range c.IgnorePatterns {
		if valid, fieldErrs := p.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	for _, o := range c.PackageOverrides {
		if valid, fieldErrs := o.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// OverrideMap returns the package overrides keyed by segment. Later entries
// for the same segment win.
func (c Config) OverrideMap() map[string]string {
	m := make(map[string]string, len(c.PackageOverrides))
	for _, o := range c.PackageOverrides {
		m[o.Segment] = o.Package
	}
	return m
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// String returns the string representation of the IgnorePattern.
func (p IgnorePattern) String() string { return string(p) }

// IsValid reports whether the pattern is a valid doublestar glob.
func (p IgnorePattern) IsValid() (bool, []error) {
	if strings.TrimSpace(string(p)) == "" || !doublestar.ValidatePattern(string(p)) {
		return false, []error{&InvalidIgnorePatternError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidIgnorePatternError.
func (e *InvalidIgnorePatternError) Error() string {
	return fmt.Sprintf("invalid ignore pattern %q", e.Value)
}

// Unwrap returns ErrInvalidIgnorePattern for errors.Is() compatibility.
func (e *InvalidIgnorePatternError) Unwrap() error { return ErrInvalidIgnorePattern }

// IsValid reports whether both the segment and the package are set.
func (o PackageOverride) IsValid() (bool, []error) {
	if strings.TrimSpace(o.Segment) == "" || strings.TrimSpace(o.Package) == "" {
		return false, []error{&InvalidPackageOverrideError{Value: o}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPackageOverrideError.
func (e *InvalidPackageOverrideError) Error() string {
	return fmt.Sprintf("invalid package override {segment: %q, package: %q}", e.Value.Segment, e.Value.Package)
}

// Unwrap returns ErrInvalidPackageOverride for errors.Is() compatibility.
func (e *InvalidPackageOverrideError) Unwrap() error { return ErrInvalidPackageOverride }

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}
