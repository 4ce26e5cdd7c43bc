// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/invowk/layerpath/internal/config"
	"github.com/invowk/layerpath/internal/environment"
	"github.com/invowk/layerpath/internal/issue"
	"github.com/invowk/layerpath/internal/packages"
	"github.com/invowk/layerpath/internal/testutil"
)

// stubProvider returns a fixed configuration or error.
type stubProvider struct {
	cfg  *config.Config
	err  error
	seen []config.LoadOptions
}

func (p *stubProvider) Load(_ context.Context, opts config.LoadOptions) (*config.Config, error) {
	p.seen = append(p.seen, opts)
	if p.err != nil {
		return nil, p.err
	}
	return p.cfg, nil
}

// testInstallation writes a small installation and returns a config rooted at it.
func testInstallation(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	testutil.WriteTree(t, root,
		"application/blocks/search/view.php",
		"concrete/blocks/autonav/view.php",
		"concrete/packages/calendar/blocks/calendar/view.php",
		"packages/events/blocks/event_list/view.php",
	)
	testutil.MustWriteFile(t, filepath.Join(root, "packages", "events", packages.ManifestFile),
		"handle = \"events\"\noverrides = [\"blocks/event_list/view.php\", \"blocks/shared.php\"]\n")

	cfg := config.DefaultConfig()
	cfg.Dirs.BaseDir = root
	return cfg
}

func newTestApp(t *testing.T, provider ConfigProvider) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app, err := NewApp(Dependencies{Config: provider, Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return app, &stdout, &stderr
}

func TestNewApp_Defaults(t *testing.T) {
	t.Parallel()

	app, err := NewApp(Dependencies{})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	if app.Config == nil || app.stdout == nil || app.stderr == nil {
		t.Errorf("NewApp() left nil dependencies: %+v", app)
	}
}

func TestOverrideSet_DeclareOverride(t *testing.T) {
	t.Parallel()

	set := make(overrideSet)
	set.DeclareOverride("a.php", environment.Handle("one"))
	set.DeclareOverride("b.php", &packages.Package{Handle: "two"})
	set.DeclareOverride("a.php", environment.Handle("three"))
	set.DeclareOverride("c.php", nil)

	want := overrideSet{"a.php": "three", "b.php": "two"}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Errorf("overrideSet mismatch (-want +got):\n%s", diff)
	}
}

func TestApp_LoadConfig(t *testing.T) {
	t.Parallel()

	loadErr := issue.NewErrorContext().
		WithOperation("load configuration").
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(errors.New("bad schema")).
		BuildError()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		provider := &stubProvider{cfg: cfg}
		app, _, _ := newTestApp(t, provider)

		got, err := app.loadConfig(t.Context(), "/etc/layerpath.cue")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if got != cfg {
			t.Error("loadConfig() did not return the provider's config")
		}
		if len(provider.seen) != 1 || provider.seen[0].ConfigFilePath != "/etc/layerpath.cue" {
			t.Errorf("provider saw %+v, want the explicit path", provider.seen)
		}
	})

	t.Run("default path falls back with warning", func(t *testing.T) {
		t.Parallel()

		app, _, stderr := newTestApp(t, &stubProvider{err: loadErr})

		got, err := app.loadConfig(t.Context(), "")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if diff := cmp.Diff(config.DefaultConfig(), got); diff != "" {
			t.Errorf("fallback config mismatch (-want +got):\n%s", diff)
		}
		if !strings.Contains(stderr.String(), "bad schema") {
			t.Errorf("stderr = %q, want the load error", stderr.String())
		}
	})

	t.Run("explicit path fails", func(t *testing.T) {
		t.Parallel()

		app, _, _ := newTestApp(t, &stubProvider{err: loadErr})

		if _, err := app.loadConfig(t.Context(), "/missing.cue"); !errors.Is(err, loadErr) {
			t.Errorf("loadConfig() error = %v, want %v", err, loadErr)
		}
	})
}

func TestApp_NewSession(t *testing.T) {
	t.Parallel()

	cfg := testInstallation(t)
	cfg.PackageOverrides = []config.PackageOverride{{Segment: "blocks/shared.php", Package: "calendar"}}
	app, _, stderr := newTestApp(t, &stubProvider{cfg: cfg})

	s, err := app.newSession(cfg, "")
	if err != nil {
		t.Fatalf("newSession() error = %v", err)
	}
	if stderr.Len() != 0 {
		t.Errorf("unexpected diagnostics: %q", stderr.String())
	}

	// Configured overrides win over manifest declarations.
	want := overrideSet{
		"blocks/event_list/view.php": "events",
		"blocks/shared.php":          "calendar",
	}
	if diff := cmp.Diff(want, s.overrides); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}

	r := s.resolver()
	rec := r.Record("blocks/shared.php", nil)
	if rec.PackageHandle != "calendar" || rec.Source != environment.SourcePackage {
		t.Errorf("Record(blocks/shared.php) = %+v, want calendar package record", rec)
	}

	if _, ok := s.packageRef("events").(*packages.Package); !ok {
		t.Error("packageRef(events) should return the listed package")
	}
	if ref, ok := s.packageRef("ghost").(environment.Handle); !ok || ref != "ghost" {
		t.Errorf("packageRef(ghost) = %#v, want Handle(ghost)", s.packageRef("ghost"))
	}
	if s.packageRef("") != nil {
		t.Error("packageRef(\"\") should be nil")
	}
}

func TestApp_NewSession_MissingBaseDir(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	app, _, _ := newTestApp(t, &stubProvider{cfg: cfg})

	_, err := app.newSession(cfg, filepath.Join(t.TempDir(), "missing"))
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("newSession() error = %v, want ActionableError", err)
	}
	if ae.Issue != issue.BaseDirNotFoundId {
		t.Errorf("Issue = %d, want %d", ae.Issue, issue.BaseDirNotFoundId)
	}
}

func TestRun_ResolveJSON(t *testing.T) {
	cfg := testInstallation(t)
	app, stdout, stderr := newTestApp(t, &stubProvider{cfg: cfg})

	code := run(t.Context(), app, []string{"resolve", "--json", "blocks/event_list/view.php"})
	if code != 0 {
		t.Fatalf("run() = %d, stderr:\n%s", code, stderr.String())
	}

	var got map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}

	want := map[string]any{
		"segment":        "blocks/event_list/view.php",
		"path":           filepath.Join(cfg.Dirs.BaseDir, "packages", "events", "blocks", "event_list", "view.php"),
		"url":            "/packages/events/blocks/event_list/view.php",
		"override":       false,
		"package_handle": "events",
		"source":         "package",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolve --json mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SnapshotSaveAndClear(t *testing.T) {
	cfg := testInstallation(t)
	layout, err := cfg.Layout("")
	if err != nil {
		t.Fatal(err)
	}

	app, stdout, stderr := newTestApp(t, &stubProvider{cfg: cfg})
	if code := run(t.Context(), app, []string{"snapshot", "save"}); code != 0 {
		t.Fatalf("snapshot save = %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), layout.SnapshotPath) {
		t.Errorf("stdout = %q, want snapshot path", stdout.String())
	}

	snap, err := environment.ReadSnapshot(layout.SnapshotPath)
	if err != nil {
		t.Fatalf("ReadSnapshot() error = %v", err)
	}
	if snap.PackageOverrides["blocks/event_list/view.php"] != "events" {
		t.Errorf("snapshot package overrides = %v, want manifest declarations", snap.PackageOverrides)
	}

	app, _, stderr = newTestApp(t, &stubProvider{cfg: cfg})
	if code := run(t.Context(), app, []string{"snapshot", "clear"}); code != 0 {
		t.Fatalf("snapshot clear = %d, stderr:\n%s", code, stderr.String())
	}
	if _, err := environment.ReadSnapshot(layout.SnapshotPath); err == nil {
		t.Error("snapshot still readable after clear")
	}
}

func TestRun_ErrorRendering(t *testing.T) {
	cfg := testInstallation(t)
	cfg.Cache.Enabled = false

	app, _, stderr := newTestApp(t, &stubProvider{cfg: cfg})
	code := run(t.Context(), app, []string{"snapshot", "show"})
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	out := stderr.String()
	if !strings.Contains(out, "cache.enabled") {
		t.Errorf("stderr = %q, want the suggestion", out)
	}
	if strings.Contains(out, "See also") {
		t.Errorf("catalog issue rendered without --verbose:\n%s", out)
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain failure")
	if got := formatErrorForDisplay(plain, true); got != "plain failure" {
		t.Errorf("formatErrorForDisplay(plain) = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("read environment snapshot").
		WithSuggestion("run 'layerpath snapshot save'").
		Wrap(plain).
		Build()
	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "failed to read environment snapshot") || !strings.Contains(got, "layerpath snapshot save") {
		t.Errorf("formatErrorForDisplay(actionable) = %q", got)
	}
}

func TestRenderCatalogIssue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	renderCatalogIssue(&buf, errors.New("no issue"), "notty")
	if buf.Len() != 0 {
		t.Errorf("unexpected output for plain error: %q", buf.String())
	}

	err := issue.NewErrorContext().
		WithOperation("watch installation").
		WithIssue(issue.WatchFailedId).
		Wrap(errors.New("too many watches")).
		BuildError()
	renderCatalogIssue(&buf, err, "notty")
	if buf.Len() == 0 {
		t.Error("expected the catalog issue to be rendered")
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("inner")
	err := &ExitError{Code: 3, Err: inner}
	if err.Error() != "inner" || !errors.Is(err, inner) {
		t.Errorf("ExitError = %v, want wrapping inner", err)
	}
	if got := (&ExitError{Code: 2}).Error(); got != "exit status 2" {
		t.Errorf("Error() = %q", got)
	}
}
