// SPDX-License-Identifier: MPL-2.0

package config

import (
	"reflect"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests verify Go struct JSON tags match CUE schema field names.
// They catch misalignments at CI time, preventing silent parsing failures.

// extractCUEFields extracts the top-level field names of a CUE struct definition.
func extractCUEFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)
	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}
	for iter.Next() {
		sel := iter.Selector()
		if sel.LabelType().IsHidden() || sel.IsDefinition() {
			continue
		}
		fields[strings.TrimSuffix(sel.String(), "?")] = true
	}
	return fields
}

// extractGoJSONTags extracts the JSON field names of a Go struct. Fields
// tagged json:"-" are excluded.
func extractGoJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}

	fields := make(map[string]bool)
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = true
	}
	return fields
}

func TestSchemaSync(t *testing.T) {
	schema := cuecontext.New().CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}

	tests := []struct {
		definition string
		typ        reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#LayoutConfig", reflect.TypeFor[DirsConfig]()},
		{"#URLConfig", reflect.TypeFor[URLConfig]()},
		{"#CacheConfig", reflect.TypeFor[CacheConfig]()},
		{"#PackageOverride", reflect.TypeFor[PackageOverride]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.definition, func(t *testing.T) {
			def := schema.LookupPath(cue.ParsePath(tt.definition))
			if def.Err() != nil {
				t.Fatalf("failed to lookup CUE definition %s: %v", tt.definition, def.Err())
			}
			cueFields := extractCUEFields(t, def)
			goFields := extractGoJSONTags(t, tt.typ)

			for field := range cueFields {
				if !goFields[field] {
					t.Errorf("CUE field %q not found in Go struct (missing JSON tag)", field)
				}
			}
			for field := range goFields {
				if !cueFields[field] {
					t.Errorf("Go JSON tag %q not found in CUE schema", field)
				}
			}
		})
	}
}

func TestIgnorePattern_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern IgnorePattern
		want    bool
	}{
		{"**/*.bak", true},
		{"blocks/{a,b}/**", true},
		{"[abc", false},
		{"  ", false},
	}
	for _, tt := range tests {
		got, errs := tt.pattern.IsValid()
		if got != tt.want {
			t.Errorf("IgnorePattern(%q).IsValid() = %v, want %v", tt.pattern, got, tt.want)
		}
		if !got && len(errs) == 0 {
			t.Errorf("IgnorePattern(%q).IsValid() returned no errors", tt.pattern)
		}
	}
}

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	for _, cs := range []ColorScheme{ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight} {
		if valid, _ := cs.IsValid(); !valid {
			t.Errorf("ColorScheme(%q).IsValid() = false", cs)
		}
	}
	if valid, _ := ColorScheme("sepia").IsValid(); valid {
		t.Error(`ColorScheme("sepia").IsValid() = true`)
	}
}
