// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the CUE helpers shared by the configuration loader
// and the environment snapshot.
//
// Reading follows a three-step flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go value
//
// Writing goes the other way: a Go value is encoded into CUE and formatted as
// a file body with Encode.
//
//	//go:embed snapshot_schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[Snapshot](schema, data, "#Snapshot",
//	    cueutil.WithFilename(path))
package cueutil
