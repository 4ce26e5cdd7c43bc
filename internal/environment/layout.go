// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"path/filepath"
	"slices"
)

const (
	// DefaultPackagesDirName is the URL path element used for package assets.
	DefaultPackagesDirName = "packages"
	// DefaultSnapshotFile is the snapshot file name inside the cache directory.
	DefaultSnapshotFile = "environment.cue"
	// DefaultAssetsURL is the public URL of the core directory.
	DefaultAssetsURL = "/concrete"
	// DefaultApplicationURL is the public URL of the application directory.
	DefaultApplicationURL = "/application"
)

var (
	// defaultCheckedDirs lists the application override roots, relative to the
	// application directory, in scan order.
	defaultCheckedDirs = []string{
		"blocks",
		"controllers",
		"elements",
		"attributes",
		"authentication",
		"jobs",
		"css",
		"js",
		"mail",
		"content",
		"themes",
		"tools",
		"page_templates",
		"views",
		"src",
		"menu_items",
	}

	// defaultIgnoreFiles are entry names skipped by the scanner in addition to
	// hidden entries.
	defaultIgnoreFiles = []string{"__MACOSX"}
)

// Layout holds the configured roots used by the Resolver. All fields are
// treated as opaque strings; no existence checks happen at construction.
type Layout struct {
	// BaseDir is the installation root. Scanned paths that are not below
	// ApplicationDir are made relative to it.
	BaseDir string
	// ApplicationDir is the application override root.
	ApplicationDir string
	// CoreDir is the core default root.
	CoreDir string
	// CorePackagesDir holds packages bundled with the core distribution.
	CorePackagesDir string
	// PackagesDir holds user-installed packages.
	PackagesDir string

	// AssetsURL is the public URL of CoreDir.
	AssetsURL string
	// ApplicationURL is the public URL of ApplicationDir.
	ApplicationURL string
	// RelDir is the public URL prefix of the installation (often empty).
	RelDir string
	// PackagesDirName is the URL path element for package assets.
	PackagesDirName string

	// CheckedDirs are the override roots scanned below ApplicationDir.
	CheckedDirs []string
	// IgnoreFiles are entry names the scanner never records.
	IgnoreFiles []string
	// IgnorePatterns are doublestar globs, matched against application-relative
	// slash paths, that the scanner never records or descends into.
	IgnorePatterns []string

	// SnapshotPath is the snapshot file location. Empty disables persistence.
	SnapshotPath string
}

// DefaultCheckedDirs returns a copy of the built-in override roots.
func DefaultCheckedDirs() []string {
	return slices.Clone(defaultCheckedDirs)
}

// WithDefaults returns a copy of the layout with unset fields derived from
// BaseDir using the conventional installation structure.
func (l Layout) WithDefaults() Layout {
	if l.ApplicationDir == "" {
		l.ApplicationDir = filepath.Join(l.BaseDir, "application")
	}
	if l.CoreDir == "" {
		l.CoreDir = filepath.Join(l.BaseDir, "concrete")
	}
	if l.CorePackagesDir == "" {
		l.CorePackagesDir = filepath.Join(l.CoreDir, DefaultPackagesDirName)
	}
	if l.PackagesDir == "" {
		l.PackagesDir = filepath.Join(l.BaseDir, DefaultPackagesDirName)
	}
	if l.AssetsURL == "" {
		l.AssetsURL = DefaultAssetsURL
	}
	if l.ApplicationURL == "" {
		l.ApplicationURL = DefaultApplicationURL
	}
	if l.PackagesDirName == "" {
		l.PackagesDirName = DefaultPackagesDirName
	}
	if l.CheckedDirs == nil {
		l.CheckedDirs = DefaultCheckedDirs()
	}
	if l.IgnoreFiles == nil {
		l.IgnoreFiles = slices.Clone(defaultIgnoreFiles)
	}
	return l
}

// checkedRoots returns the absolute override roots in scan order.
func (l Layout) checkedRoots() []string {
	roots := make([]string, 0, len(l.CheckedDirs))
	for _, dir := range l.CheckedDirs {
		if filepath.IsAbs(dir) {
			roots = append(roots, dir)
			continue
		}
		roots = append(roots, filepath.Join(l.ApplicationDir, dir))
	}
	return roots
}

// WatchRoots returns every directory whose contents influence resolution:
// the override roots followed by both package roots.
func (l Layout) WatchRoots() []string {
	roots := l.checkedRoots()
	return append(roots, l.CorePackagesDir, l.PackagesDir)
}
