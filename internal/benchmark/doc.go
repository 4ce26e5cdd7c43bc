// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for layerpath's hot paths:
//   - the directory scan over a populated installation
//   - cached and uncached segment resolution
//   - snapshot encoding, loading and manifest parsing
//
// Run them with:
//
//	go test -bench=. -benchmem ./internal/benchmark/
package benchmark
