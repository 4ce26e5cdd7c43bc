// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// resourceExhausted reports inotify and descriptor exhaustion. The watcher
// cannot recover from these without the user raising a kernel limit
// (fs.inotify.max_user_watches, ulimit -n).
func resourceExhausted(err error) bool {
	for _, errno := range []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
