// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()

		if err := FormatError(nil, "environment.cue"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with file name", func(t *testing.T) {
		t.Parallel()

		original := errors.New("disk on fire")
		err := FormatError(original, "environment.cue")
		if !errors.Is(err, original) {
			t.Errorf("error should wrap the original, got %v", err)
		}
		if !strings.HasPrefix(err.Error(), "environment.cue: ") {
			t.Errorf("error should start with the file name, got %q", err.Error())
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{name: "empty path", path: nil, expected: ""},
		{name: "single element", path: []string{"version"}, expected: "version"},
		{name: "nested field", path: []string{"layout", "base_dir"}, expected: "layout.base_dir"},
		{name: "list index", path: []string{"checked_dirs", "3"}, expected: "checked_dirs[3]"},
		{name: "index then field", path: []string{"items", "0", "name", "1"}, expected: "items[0].name[1]"},
		{name: "numeric leading element", path: []string{"0", "name"}, expected: "0.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	if got := formatLine("version", "version: conflicting values 2 and 1"); got != "version: conflicting values 2 and 1" {
		t.Errorf("duplicated path prefix not removed, got %q", got)
	}
	if got := formatLine("", "syntax error"); got != "syntax error" {
		t.Errorf("pathless message changed, got %q", got)
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 100), 100, "config.cue"); err != nil {
		t.Errorf("data at the limit should pass, got %v", err)
	}

	err := CheckFileSize(make([]byte, 101), 100, "config.cue")
	if err == nil {
		t.Fatal("expected error for oversized data")
	}
	for _, want := range []string{"config.cue", "101", "100"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err.Error(), want)
		}
	}
}
