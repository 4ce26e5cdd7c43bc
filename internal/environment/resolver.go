// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// Option configures a Resolver.
	Option func(*Resolver)

	// ScanStats describes a completed directory scan.
	ScanStats struct {
		// Overrides is the number of distinct override segments discovered.
		Overrides int
		// CorePackages is the number of core package handles discovered.
		CorePackages int
		// Duration is the wall time spent scanning.
		Duration time.Duration
	}

	cacheKey struct {
		segment string
		handle  string
	}

	// Resolver maps segments to Records using the application override, package
	// and core layers. It is safe for concurrent use.
	//
	// The zero value is not usable; construct with New, Open or LoadSnapshot.
	Resolver struct {
		layout         Layout
		ignorePatterns []string
		onScan         func(ScanStats)

		mu           sync.Mutex
		overridden   map[string]struct{}
		corePackages map[string]struct{}
		manual       map[string]string
		cache        map[cacheKey]Record
		scanned      bool
		fromSnapshot bool
	}
)

// WithScanHook registers a function called after every directory scan.
// The hook runs while the Resolver's lock is held and must not call back
// into the Resolver.
func WithScanHook(fn func(ScanStats)) Option {
	return func(r *Resolver) {
		r.onScan = fn
	}
}

// WithPackageOverrides declares segment -> package handle overrides at
// construction time, as if DeclareOverride had been called for each entry.
// Entries with an empty handle are ignored.
func WithPackageOverrides(overrides map[string]string) Option {
	return func(r *Resolver) {
		for segment, handle := range overrides {
			if handle = strings.TrimSpace(handle); handle != "" {
				r.manual[segment] = handle
			}
		}
	}
}

// New creates a Resolver for the given layout. Unset layout fields are derived
// with Layout.WithDefaults. No filesystem access happens until the first lookup.
func New(layout Layout, opts ...Option) *Resolver {
	layout = layout.WithDefaults()

	r := &Resolver{
		layout: layout,
		manual: make(map[string]string),
		cache:  make(map[cacheKey]Record),
	}
	for _, pattern := range layout.IgnorePatterns {
		if !doublestar.ValidatePattern(pattern) {
			slog.Warn("ignoring invalid scan ignore pattern", "pattern", pattern)
			continue
		}
		r.ignorePatterns = append(r.ignorePatterns, pattern)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout returns the resolver's effective layout.
func (r *Resolver) Layout() Layout {
	return r.layout
}

// FromSnapshot reports whether the current scan state was rehydrated from a
// snapshot rather than produced by a directory scan.
func (r *Resolver) FromSnapshot() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fromSnapshot
}

// Record resolves segment, optionally scoped to a package, and returns the
// chosen location. It never fails: when nothing supplies the segment the core
// default location is returned even if it does not exist. Use Direct when the
// answer must reflect the filesystem as it is right now.
//
// Precedence (first match wins):
//  1. a cached record for (segment, package)
//  2. no package, not overridden, not declared: core default
//  3. overridden by the application root (regardless of package)
//  4. declared via DeclareOverride: the declared package replaces the argument
//  5. the package directory (core packages root or user packages root)
func (r *Resolver) Record(segment string, pkg PackageRef) Record {
	handle := handleOf(pkg)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ensureScanned()

	if rec, ok := r.cache[cacheKey{segment: segment, handle: handle}]; ok {
		return rec
	}

	_, overridden := r.overridden[segment]
	declared, hasDeclared := r.manual[segment]

	if handle == "" && !overridden && !hasDeclared {
		rec := r.layout.coreRecord(segment)
		r.cache[cacheKey{segment: segment}] = rec
		return rec
	}

	if overridden {
		rec := r.layout.applicationRecord(segment)
		r.cache[cacheKey{segment: segment}] = rec
		return rec
	}

	if hasDeclared {
		handle = declared
	}

	_, core := r.corePackages[handle]
	rec := r.layout.packageRecord(segment, handle, core)
	r.cache[cacheKey{segment: segment, handle: handle}] = rec
	return rec
}

// Path returns the physical path of the record for segment.
func (r *Resolver) Path(segment string, pkg PackageRef) string {
	return r.Record(segment, pkg).Path
}

// URL returns the public URL of the record for segment.
func (r *Resolver) URL(segment string, pkg PackageRef) string {
	return r.Record(segment, pkg).URL
}

// DeclareOverride states that segment is supplied by pkg, bypassing the
// scan-based precedence. A later declaration for the same segment replaces an
// earlier one. An application override discovered by the scan still wins.
// A nil pkg (or an empty handle) withdraws any declaration for segment.
func (r *Resolver) DeclareOverride(segment string, pkg PackageRef) {
	handle := handleOf(pkg)

	r.mu.Lock()
	defer r.mu.Unlock()

	if handle == "" {
		delete(r.manual, segment)
	} else {
		r.manual[segment] = handle
	}
	for key := range r.cache {
		if key.segment == segment {
			delete(r.cache, key)
		}
	}
}

// ManualOverrides returns a copy of the declared segment -> handle overrides.
func (r *Resolver) ManualOverrides() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.manual)
}

// Overrides returns the sorted list of segments found under the application
// override roots, scanning first if needed.
func (r *Resolver) Overrides() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureScanned()
	return slices.Sorted(maps.Keys(r.overridden))
}

// CorePackages returns the sorted handles of core-bundled packages, scanning
// first if needed.
func (r *Resolver) CorePackages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureScanned()
	return slices.Sorted(maps.Keys(r.corePackages))
}

// coreRecord builds the core default record for segment.
func (l Layout) coreRecord(segment string) Record {
	return Record{
		Path:   filepath.Join(l.CoreDir, filepath.FromSlash(segment)),
		URL:    joinURL(l.AssetsURL, segment),
		Source: SourceCore,
	}
}

// applicationRecord builds the application override record for segment.
func (l Layout) applicationRecord(segment string) Record {
	return Record{
		Path:     filepath.Join(l.ApplicationDir, filepath.FromSlash(segment)),
		URL:      joinURL(l.ApplicationURL, segment),
		Override: true,
		Source:   SourceApplication,
	}
}

// packageRecord builds the record for segment inside package handle. Core
// packages are served from the assets URL; user packages from the relative
// installation URL.
func (l Layout) packageRecord(segment, handle string, core bool) Record {
	rec := Record{
		PackageHandle: handle,
		Source:        SourcePackage,
	}
	if core {
		rec.Path = filepath.Join(l.CorePackagesDir, handle, filepath.FromSlash(segment))
		rec.URL = joinURL(l.AssetsURL, l.PackagesDirName, handle, segment)
	} else {
		rec.Path = filepath.Join(l.PackagesDir, handle, filepath.FromSlash(segment))
		rec.URL = joinURL(l.RelDir, l.PackagesDirName, handle, segment)
	}
	return rec
}
