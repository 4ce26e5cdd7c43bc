// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Manifest: {
	handle:   string & != ""
	roots:    *[] | [...string]
	verbose?: bool
}
`

type testManifest struct {
	Handle  string   `json:"handle"`
	Roots   []string `json:"roots"`
	Verbose bool     `json:"verbose,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid document decodes", func(t *testing.T) {
		t.Parallel()

		data := []byte(`
handle: "calendar"
roots: ["blocks", "themes"]
`)
		result, err := ParseAndDecode[testManifest]([]byte(testSchema), data, "#Manifest")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Handle != "calendar" {
			t.Errorf("Handle = %q, want calendar", result.Value.Handle)
		}
		if len(result.Value.Roots) != 2 || result.Value.Roots[1] != "themes" {
			t.Errorf("Roots = %v, want [blocks themes]", result.Value.Roots)
		}
	})

	t.Run("defaults fill omitted lists", func(t *testing.T) {
		t.Parallel()

		result, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: "x"`), "#Manifest")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if len(result.Value.Roots) != 0 {
			t.Errorf("Roots = %v, want empty", result.Value.Roots)
		}
	})

	t.Run("schema violation reports file and path", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: 42`), "#Manifest",
			WithFilename("manifest.cue"))
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "manifest.cue") || !strings.Contains(err.Error(), "handle") {
			t.Errorf("error should name file and field, got %v", err)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: "x`), "#Manifest")
		if err == nil {
			t.Fatal("expected syntax error")
		}
	})

	t.Run("oversized document", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: "calendar"`), "#Manifest",
			WithMaxFileSize(4))
		if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
			t.Fatalf("expected size error, got %v", err)
		}
	})

	t.Run("non-concrete value rejected by default", func(t *testing.T) {
		t.Parallel()

		if _, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: string`), "#Manifest"); err == nil {
			t.Error("expected concreteness error by default")
		}
	})

	t.Run("missing definition", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testManifest]([]byte(testSchema), []byte(`handle: "x"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "#Missing") {
			t.Fatalf("expected missing definition error, got %v", err)
		}
	})
}

func TestEncode(t *testing.T) {
	t.Parallel()

	out, err := Encode(&testManifest{Handle: "calendar", Roots: []string{"blocks"}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	text := string(out)
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		t.Errorf("top-level struct should not be wrapped in braces:\n%s", text)
	}
	if !strings.Contains(text, `handle: "calendar"`) {
		t.Errorf("encoded output missing handle field:\n%s", text)
	}

	// Encoded output must read back through the schema.
	result, err := ParseAndDecode[testManifest]([]byte(testSchema), out, "#Manifest")
	if err != nil {
		t.Fatalf("round trip failed: %v\n%s", err, text)
	}
	if result.Value.Handle != "calendar" || len(result.Value.Roots) != 1 {
		t.Errorf("round trip = %+v", result.Value)
	}
}
