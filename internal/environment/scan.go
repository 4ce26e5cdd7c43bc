// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

// ensureScanned runs the directory scan once per scan generation.
// Callers must hold r.mu.
func (r *Resolver) ensureScanned() {
	if r.scanned {
		return
	}

	start := time.Now()
	overridden := make(map[string]struct{})
	for _, root := range r.layout.checkedRoots() {
		if !isDir(root) {
			continue
		}
		r.walkOverrides(root, func(path string) {
			overridden[r.layout.segmentFor(path)] = struct{}{}
		})
	}

	corePackages := make(map[string]struct{})
	for _, handle := range r.listPackageDirs(r.layout.CorePackagesDir) {
		corePackages[handle] = struct{}{}
	}

	r.overridden = overridden
	r.corePackages = corePackages
	r.scanned = true
	r.fromSnapshot = false

	stats := ScanStats{
		Overrides:    len(overridden),
		CorePackages: len(corePackages),
		Duration:     time.Since(start),
	}
	slog.Debug("environment scan complete",
		"overrides", stats.Overrides,
		"core_packages", stats.CorePackages,
		"duration", stats.Duration)
	if r.onScan != nil {
		r.onScan(stats)
	}
}

// walkOverrides records every non-ignored entry below root, directories
// included. Unreadable directories contribute themselves but nothing below.
func (r *Resolver) walkOverrides(root string, record func(path string)) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("skipping unreadable override path", "path", path, "error", err)
			return nil //nolint:nilerr // a failing subtree must not abort the scan
		}
		if path == root {
			return nil
		}
		if r.ignored(path, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		record(path)
		return nil
	})
	if walkErr != nil {
		slog.Debug("override scan stopped early", "root", root, "error", walkErr)
	}
}

// listPackageDirs returns the names of the package directories directly
// below dir. A missing or unreadable dir yields nothing.
func (r *Resolver) listPackageDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("skipping unreadable packages directory", "dir", dir, "error", err)
		}
		return nil
	}

	var handles []string
	for _, entry := range entries {
		name := entry.Name()
		if r.ignoredName(name) {
			continue
		}
		if !isDir(filepath.Join(dir, name)) {
			continue
		}
		handles = append(handles, name)
	}
	return handles
}

// ignored reports whether the entry at path must be left out of the scan.
func (r *Resolver) ignored(path, name string) bool {
	if r.ignoredName(name) {
		return true
	}
	if len(r.ignorePatterns) == 0 {
		return false
	}
	segment := r.layout.segmentFor(path)
	for _, pattern := range r.ignorePatterns {
		if matched, err := doublestar.Match(pattern, segment); err == nil && matched {
			return true
		}
	}
	return false
}

// ignoredName reports whether an entry name is hidden or explicitly ignored.
// Names that are not valid UTF-8 cannot be stored in a snapshot and are
// skipped too.
func (r *Resolver) ignoredName(name string) bool {
	if !utf8.ValidString(name) {
		slog.Debug("skipping entry with non-UTF-8 name", "name", name)
		return true
	}
	return strings.HasPrefix(name, ".") || slices.Contains(r.layout.IgnoreFiles, name)
}

// segmentFor converts a scanned path into a slash-separated segment relative
// to the application root, falling back to the base root.
func (l Layout) segmentFor(path string) string {
	for _, prefix := range []string{l.ApplicationDir, l.BaseDir} {
		if prefix == "" {
			continue
		}
		rel, err := filepath.Rel(prefix, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return collapseSlashes(filepath.ToSlash(rel))
	}
	return collapseSlashes(filepath.ToSlash(path))
}

// collapseSlashes replaces runs of "/" with a single separator.
func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

// isDir reports whether path exists and is a directory, following symlinks.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// exists reports whether anything exists at path.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
