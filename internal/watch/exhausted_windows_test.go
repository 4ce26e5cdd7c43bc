// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"fmt"
	"syscall"
	"testing"
)

func TestResourceExhausted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"too many open files", errnoTooManyOpenFiles, true},
		{"invalid handle", fmt.Errorf("read changes: %w", errnoInvalidHandle), true},
		{"not enough memory", errnoNotEnoughMemory, true},
		{"access denied", syscall.Errno(5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resourceExhausted(tt.err); got != tt.want {
				t.Errorf("resourceExhausted(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
