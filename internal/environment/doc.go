// SPDX-License-Identifier: MPL-2.0

// Package environment resolves logical resource segments to physical paths and
// public URLs across three layered sources.
//
// A segment (e.g. "blocks/autonav/view.php") may be supplied by, in order of
// precedence:
//  1. the application override directory,
//  2. a package directory (core-bundled or user-installed),
//  3. the core default directory.
//
// The Resolver scans the application override roots once, memoizes every
// resolution, and can persist its scan results to a versioned CUE snapshot so
// that later processes skip the scan entirely.
//
// File organization:
//   - layout.go: configured roots and their defaults
//   - record.go: Record, Source and the PackageRef call-boundary type
//   - resolver.go: Resolver construction, precedence rules and caching
//   - scan.go: the one-time directory scan
//   - direct.go: uncached lookups backed by live existence checks
//   - snapshot.go: snapshot load/save/clear
package environment
