// SPDX-License-Identifier: MPL-2.0

// Package packages discovers installed packages and their package.toml
// manifests, and feeds manifest-declared overrides to the resolver.
package packages

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/invowk/layerpath/internal/environment"
)

// ManifestFile is the per-package manifest file name.
const ManifestFile = "package.toml"

// ErrHandleMismatch is returned when a manifest's handle differs from its
// directory name. The resolver addresses packages by directory name, so the
// two must agree.
var ErrHandleMismatch = errors.New("manifest handle does not match package directory")

type (
	// Package is an installed package. It implements environment.PackageRef.
	Package struct {
		Handle      string `toml:"handle"`
		Name        string `toml:"name"`
		Version     string `toml:"version"`
		Description string `toml:"description"`
		// Overrides are segments this package supplies in place of the
		// application and core layers.
		Overrides []string `toml:"overrides"`

		// Core is true for packages bundled with the core distribution.
		Core bool `toml:"-"`
		// Dir is the package directory.
		Dir string `toml:"-"`
	}

	// Diagnostic records a package whose manifest could not be used.
	Diagnostic struct {
		Dir string
		Err error
	}

	// ListResult holds the packages found by List.
	ListResult struct {
		// Packages are the core packages followed by the user packages, each
		// group ordered by directory name.
		Packages []*Package
		// Diagnostics are non-fatal manifest problems.
		Diagnostics []Diagnostic
	}

	// OverrideDeclarer receives manifest-declared overrides.
	OverrideDeclarer interface {
		DeclareOverride(segment string, pkg environment.PackageRef)
	}
)

// PackageHandle implements environment.PackageRef. A nil package has no handle.
func (p *Package) PackageHandle() string {
	if p == nil {
		return ""
	}
	return p.Handle
}

// DisplayName returns Name, falling back to the handle.
func (p *Package) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Handle
}

// LoadManifest reads dir/package.toml. A missing manifest is not an error:
// the package is described by its directory name alone.
func LoadManifest(dir string) (*Package, error) {
	handle := filepath.Base(dir)
	path := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Package{Handle: handle, Dir: dir}, nil
		}
		return nil, fmt.Errorf("read package manifest: %w", err)
	}

	var pkg Package
	if err := toml.Unmarshal(data, &pkg); err != nil {
		return nil, formatDecodeError(path, err)
	}

	switch pkg.Handle = strings.TrimSpace(pkg.Handle); pkg.Handle {
	case "":
		pkg.Handle = handle
	case handle:
	default:
		return nil, fmt.Errorf("%s: %w: %q vs %q", path, ErrHandleMismatch, pkg.Handle, handle)
	}
	pkg.Dir = dir
	return &pkg, nil
}

// formatDecodeError adds the file position to TOML syntax errors.
func formatDecodeError(path string, err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("%s:%d:%d: %w", path, row, col, err)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// List returns the packages below coreDir and userDir. Missing roots are
// skipped. A package with an unusable manifest is still listed, without
// overrides, and reported in Diagnostics.
func List(coreDir, userDir string) ListResult {
	var result ListResult
	for _, root := range []struct {
		dir  string
		core bool
	}{
		{coreDir, true},
		{userDir, false},
	} {
		if root.dir == "" {
			continue
		}
		entries, err := os.ReadDir(root.dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{Dir: root.dir, Err: err})
			}
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root.dir, name)
			pkg, err := LoadManifest(dir)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics, Diagnostic{Dir: dir, Err: err})
				pkg = &Package{Handle: name, Dir: dir}
			}
			pkg.Core = root.core
			result.Packages = append(result.Packages, pkg)
		}
	}
	return result
}

// Find returns the first package with the given handle. Core packages come
// first, matching the resolver's lookup order.
func Find(pkgs []*Package, handle string) (*Package, bool) {
	for _, pkg := range pkgs {
		if pkg.Handle == handle {
			return pkg, true
		}
	}
	return nil, false
}

// ApplyOverrides declares every manifest override on d, in package order, and
// returns the number of declarations made. A segment claimed by several
// packages ends up with the last one.
func ApplyOverrides(d OverrideDeclarer, pkgs []*Package) int {
	n := 0
	for _, pkg := range pkgs {
		for _, segment := range pkg.Overrides {
			segment = strings.Trim(strings.TrimSpace(segment), "/")
			if segment == "" {
				continue
			}
			d.DeclareOverride(segment, pkg)
			n++
		}
	}
	return n
}
