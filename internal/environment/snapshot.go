// SPDX-License-Identifier: MPL-2.0

package environment

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/invowk/layerpath/pkg/cueutil"
)

// SnapshotVersion is the snapshot format version written by this package.
const SnapshotVersion = 1

//go:embed snapshot_schema.cue
var snapshotSchema []byte

// ErrSnapshotDisabled is returned by snapshot writes when the layout has no
// snapshot path.
var ErrSnapshotDisabled = errors.New("environment snapshot path not configured")

// Snapshot is the persisted form of a Resolver's scan results.
type Snapshot struct {
	// Version is the snapshot format version.
	Version int `json:"version"`
	// Generated is the RFC 3339 creation time.
	Generated string `json:"generated,omitempty"`
	// Overrides are the segments found under the application override roots.
	Overrides []string `json:"overrides"`
	// CorePackages are the handles of core-bundled packages.
	CorePackages []string `json:"core_packages"`
	// PackageOverrides are the declared segment -> handle overrides.
	PackageOverrides map[string]string `json:"package_overrides"`
}

// Open is the build-or-load factory: it rehydrates a Resolver from the
// layout's snapshot when a usable one exists and builds a fresh one otherwise.
func Open(layout Layout, opts ...Option) *Resolver {
	if r, ok := LoadSnapshot(layout, opts...); ok {
		return r
	}
	return New(layout, opts...)
}

// LoadSnapshot rehydrates a Resolver from the layout's snapshot file. It
// reports false when the file is absent, unreadable, malformed or written by
// an unknown format version; such failures are logged, never returned.
//
// Overrides declared through opts take precedence over persisted ones.
func LoadSnapshot(layout Layout, opts ...Option) (*Resolver, bool) {
	layout = layout.WithDefaults()
	if layout.SnapshotPath == "" {
		return nil, false
	}

	snap, err := ReadSnapshot(layout.SnapshotPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no environment snapshot", "path", layout.SnapshotPath)
		} else {
			slog.Warn("ignoring unusable environment snapshot", "path", layout.SnapshotPath, "error", err)
		}
		return nil, false
	}

	r := New(layout, opts...)
	r.restore(snap)
	return r, true
}

// SaveSnapshotIfAbsent scans a fresh Resolver and writes its state to the
// layout's snapshot file, unless the file already exists. It never refreshes
// an existing snapshot; use ClearSnapshot first. It reports whether a file was
// written.
func SaveSnapshotIfAbsent(layout Layout, opts ...Option) (bool, error) {
	layout = layout.WithDefaults()
	if layout.SnapshotPath == "" {
		return false, ErrSnapshotDisabled
	}
	if _, err := os.Stat(layout.SnapshotPath); err == nil {
		return false, nil
	}

	r := New(layout, opts...)
	if err := r.WriteSnapshot(layout.SnapshotPath); err != nil {
		return false, err
	}
	return true, nil
}

// ReadSnapshot reads and validates a snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment snapshot: %w", err)
	}

	result, err := cueutil.ParseAndDecode[Snapshot](snapshotSchema, data, "#Snapshot", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Snapshot returns the resolver's current scan state, scanning first if needed.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureScanned()

	manual := maps.Clone(r.manual)
	if manual == nil {
		manual = map[string]string{}
	}
	return Snapshot{
		Version:          SnapshotVersion,
		Generated:        time.Now().UTC().Format(time.RFC3339),
		Overrides:        slices.Sorted(maps.Keys(r.overridden)),
		CorePackages:     slices.Sorted(maps.Keys(r.corePackages)),
		PackageOverrides: manual,
	}
}

// WriteSnapshot writes the resolver's state to path, replacing any existing
// file. The write goes through a temporary file renamed into place.
func (r *Resolver) WriteSnapshot(path string) error {
	if path == "" {
		return ErrSnapshotDisabled
	}

	snap := r.Snapshot()
	content, err := encodeSnapshot(&snap)
	if err != nil {
		return fmt.Errorf("encode environment snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("write environment snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup of temp file
		return fmt.Errorf("rename environment snapshot: %w", err)
	}

	slog.Debug("environment snapshot written", "path", path, "overrides", len(snap.Overrides))
	return nil
}

// ClearSnapshot deletes the layout's snapshot file, if any, and resets the
// scan state and cache so the next lookup rescans. Declared overrides are
// kept. The in-memory reset happens even when the file cannot be removed.
func (r *Resolver) ClearSnapshot() error {
	r.mu.Lock()
	r.scanned = false
	r.fromSnapshot = false
	r.overridden = nil
	r.corePackages = nil
	r.cache = make(map[cacheKey]Record)
	r.mu.Unlock()

	path := r.layout.SnapshotPath
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove environment snapshot: %w", err)
	}
	return nil
}

// restore installs snapshot state as the resolver's completed scan.
func (r *Resolver) restore(snap *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overridden = make(map[string]struct{}, len(snap.Overrides))
	for _, segment := range snap.Overrides {
		r.overridden[segment] = struct{}{}
	}
	r.corePackages = make(map[string]struct{}, len(snap.CorePackages))
	for _, handle := range snap.CorePackages {
		r.corePackages[handle] = struct{}{}
	}
	for segment, handle := range snap.PackageOverrides {
		if _, declared := r.manual[segment]; !declared && handle != "" {
			r.manual[segment] = handle
		}
	}
	r.scanned = true
	r.fromSnapshot = true
}

// encodeSnapshot renders a snapshot as a CUE document.
func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	body, err := cueutil.Encode(snap)
	if err != nil {
		return nil, err
	}
	header := "// layerpath environment snapshot - generated, do not edit.\n" +
		"// Remove with 'layerpath snapshot clear' after installing or removing packages.\n\n"
	return append([]byte(header), body...), nil
}
