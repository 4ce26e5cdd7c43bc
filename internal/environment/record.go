// SPDX-License-Identifier: MPL-2.0

package environment

import "strings"

const (
	// SourceCore indicates the segment resolved to the core default directory.
	SourceCore Source = iota
	// SourceApplication indicates the segment resolved to the application override directory.
	SourceApplication
	// SourcePackage indicates the segment resolved to a package directory.
	SourcePackage
)

type (
	// Source identifies which layer supplied a Record.
	Source int

	// Record is the result of resolving a segment.
	Record struct {
		// Path is the physical filesystem location chosen.
		Path string `json:"path"`
		// URL is the public URL matching Path.
		URL string `json:"url"`
		// Override is true when the record comes from the application override root.
		Override bool `json:"override"`
		// PackageHandle is set when the record comes from a package directory.
		PackageHandle string `json:"package_handle,omitempty"`
		// Source is the layer that supplied the record.
		Source Source `json:"source"`
	}

	// PackageRef identifies a package at the Resolver's call boundary. Both a
	// bare Handle and a loaded package object satisfy it; a nil PackageRef
	// means "no package".
	PackageRef interface {
		PackageHandle() string
	}

	// Handle is a PackageRef made of a raw package handle.
	Handle string
)

// String returns a human-readable source name.
func (s Source) String() string {
	switch s {
	case SourceCore:
		return "core"
	case SourceApplication:
		return "application"
	case SourcePackage:
		return "package"
	default:
		return "unknown"
	}
}

// MarshalText encodes the source as its name.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PackageHandle implements PackageRef.
func (h Handle) PackageHandle() string { return string(h) }

// String returns the raw handle.
func (h Handle) String() string { return string(h) }

// handleOf normalizes a PackageRef to its string handle ("" for nil).
func handleOf(ref PackageRef) string {
	if ref == nil {
		return ""
	}
	return strings.TrimSpace(ref.PackageHandle())
}

// joinURL joins a URL prefix and a slash-separated path without doubling or
// dropping separators. An empty prefix yields a root-relative URL.
func joinURL(prefix string, elems ...string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(prefix, "/"))
	for _, elem := range elems {
		elem = strings.Trim(elem, "/")
		if elem == "" {
			continue
		}
		sb.WriteByte('/')
		sb.WriteString(elem)
	}
	return sb.String()
}
