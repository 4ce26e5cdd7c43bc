// SPDX-License-Identifier: MPL-2.0

package environment

import "path/filepath"

// Direct resolves segment with live existence checks, bypassing the scan
// state and the cache. It is meant for callers that cannot tolerate a stale
// answer, e.g. right after a package was installed.
//
// The application root wins when the segment exists there. Otherwise, when a
// package is given, the core packages root and then the user packages root
// are checked. Anything else falls back to the core default location, which
// is not checked for existence.
func (r *Resolver) Direct(segment string, pkg PackageRef) Record {
	l := r.layout
	rel := filepath.FromSlash(segment)

	if exists(filepath.Join(l.ApplicationDir, rel)) {
		return l.applicationRecord(segment)
	}

	if handle := handleOf(pkg); handle != "" {
		if exists(filepath.Join(l.CorePackagesDir, handle, rel)) {
			return l.packageRecord(segment, handle, true)
		}
		if exists(filepath.Join(l.PackagesDir, handle, rel)) {
			return l.packageRecord(segment, handle, false)
		}
	}

	return l.coreRecord(segment)
}
