// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/invowk/layerpath/internal/config"
	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
	"github.com/invowk/layerpath/internal/packages"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer: every Cobra handler receives an App and builds its
	// resolver through it.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// session is the per-invocation view of the installation: the loaded
	// configuration, its layout, the packages found on disk and the override
	// declarations gathered from config and package manifests.
	session struct {
		cfg       *config.Config
		layout    environment.Layout
		packages  packages.ListResult
		overrides overrideSet
	}

	// overrideSet collects override declarations so they can be handed to
	// every Resolver a command builds. Later declarations win.
	overrideSet map[string]string
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}, nil
}

// DeclareOverride implements packages.OverrideDeclarer.
func (s overrideSet) DeclareOverride(segment string, pkg environment.PackageRef) {
	if pkg == nil {
		return
	}
	s[segment] = pkg.PackageHandle()
}

// loadConfig loads configuration through the provider. An explicitly named
// config file must load; otherwise failures fall back to defaults with a
// warning so the tool stays usable on a broken user config.
func (a *App) loadConfig(ctx context.Context, configPath string) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: configPath})
	if err == nil {
		return cfg, nil
	}
	if configPath != "" {
		return nil, err
	}

	fmt.Fprintf(a.stderr, "%s %s\n", WarningStyle.Render("warning:"), formatErrorForDisplay(err, false))
	fmt.Fprintf(a.stderr, "%s using default configuration\n", WarningStyle.Render("warning:"))
	return config.DefaultConfig(), nil
}

// newSession derives the layout from cfg, lists packages and gathers the
// override declarations. Manifest declarations are applied first so that
// configured package_overrides take precedence.
func (a *App) newSession(cfg *config.Config, baseDir string) (*session, error) {
	layout, err := cfg.Layout(baseDir)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(layout.BaseDir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		return nil, issue.NewErrorContext().
			WithOperation("open installation").
			WithResource(layout.BaseDir).
			WithSuggestions(
				"pass the installation root with --base-dir",
				"set layout.base_dir in the configuration file",
			).
			WithIssue(issue.BaseDirNotFoundId).
			Wrap(err).
			BuildError()
	}

	s := &session{
		cfg:       cfg,
		layout:    layout,
		overrides: make(overrideSet),
	}
	s.refreshPackages()
	a.renderDiagnostics(s.packages.Diagnostics)
	return s, nil
}

// refreshPackages re-reads both package roots and rebuilds the override set.
func (s *session) refreshPackages() {
	s.packages = packages.List(s.layout.CorePackagesDir, s.layout.PackagesDir)
	s.overrides = make(overrideSet)
	packages.ApplyOverrides(s.overrides, s.packages.Packages)
	maps.Copy(s.overrides, s.cfg.OverrideMap())
}

// options returns the Resolver options shared by every resolver of the session.
func (s *session) options(extra ...environment.Option) []environment.Option {
	opts := []environment.Option{environment.WithPackageOverrides(s.overrides)}
	return append(opts, extra...)
}

// resolver builds or rehydrates the session's Resolver.
func (s *session) resolver() *environment.Resolver {
	return environment.Open(s.layout, s.options()...)
}

// packageRef turns a --package flag value into a PackageRef. Known packages
// are passed as package objects; unknown handles are passed through verbatim.
func (s *session) packageRef(handle string) environment.PackageRef {
	if handle == "" {
		return nil
	}
	if pkg, ok := packages.Find(s.packages.Packages, handle); ok {
		return pkg
	}
	return environment.Handle(handle)
}

// renderDiagnostics writes package manifest problems to stderr.
func (a *App) renderDiagnostics(diags []packages.Diagnostic) {
	for _, diag := range diags {
		fmt.Fprintf(a.stderr, "%s %s (%s)\n", WarningStyle.Render("warning:"), diag.Err, diag.Dir)
	}
}
