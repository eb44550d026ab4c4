// Package types provides core type definitions and interfaces for the patchwork library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root patchwork package and its writer, pipeline and internal packages.
//
// Key types:
//   - Buffer, Allocator: Accumulator storage and its allocation strategy
//   - Writer, Reader: Persistence of assembled subjects
//   - SubjectState: Subject assembly lifecycle state
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
