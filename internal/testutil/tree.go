// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteTree creates the given slash-separated entries below root. Entries
// ending in "/" become directories; all others become files whose content is
// their own relative path. Parent directories are created as needed.
//
// Usage:
//
//	root := t.TempDir()
//	testutil.WriteTree(t, root,
//	    "application/blocks/autonav/view.php",
//	    "packages/calendar/",
//	)
func WriteTree(t testing.TB, root string, entries ...string) {
	t.Helper()
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if strings.HasSuffix(entry, "/") {
			MustMkdirAll(t, path, 0o755)
			continue
		}
		MustWriteFile(t, path, entry)
	}
}

// MustWriteFile writes content to path, creating parent directories.
// The test fails immediately if the operation fails.
func MustWriteFile(t testing.TB, path, content string) {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
