// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/invowk/layerpath/internal/testutil"
)

// newTestLayout creates an installation below a temp dir with the given
// entries and returns its layout with a snapshot path under cache/.
func newTestLayout(t *testing.T, entries ...string) Layout {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, entries...)
	return Layout{
		BaseDir:      root,
		SnapshotPath: filepath.Join(root, "cache", DefaultSnapshotFile),
	}.WithDefaults()
}

// scanCounter returns an Option counting directory scans.
func scanCounter() (Option, *atomic.Int32) {
	var n atomic.Int32
	return WithScanHook(func(ScanStats) { n.Add(1) }), &n
}
