// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
)

// Encode renders a Go value as a formatted CUE file body. Struct values are
// emitted as top-level fields without enclosing braces. Field names follow
// the value's json tags.
func Encode(v any) ([]byte, error) {
	val := cuecontext.New().Encode(v)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("encode to CUE: %w", err)
	}

	node := val.Syntax(cue.Final(), cue.Concrete(true))
	if lit, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: lit.Elts}
	}

	out, err := format.Node(node)
	if err != nil {
		return nil, fmt.Errorf("format CUE: %w", err)
	}
	return out, nil
}
