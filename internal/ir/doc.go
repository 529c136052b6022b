// Package ir provides the tagged value representation shared by every cart
// component.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal, which keeps it the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere: money is minor currency units, weight is grams
//   - Absent values are IRNull, never a Go nil inside a container
//   - Snapshots preserve field evaluation order; canonical JSON sorts keys
//   - All JSON keys use snake_case
package ir
