// Package engine implements the reactive field engine behind carts and
// their line items.
//
// ARCHITECTURE:
//
// An Engine owns one record's field values. Fields are declared once and
// compiled into an immutable, topologically sorted graph (package graph)
// shared by every engine of the same kind. Each resolver is a pure function
// of its declared dependencies, the raw override store, and an injected
// read-only environment.
//
// Sweep:
// Resolve (and every accepted mutation) evaluates all fields in graph order.
// Resolver failures are collected per sweep as *ValidationError values; they
// never stop the sweep of unrelated fields. Errors returns the full list and
// Err the most recent one.
//
// Mutation gate:
// SetField returns a future.Future. Fields that feed other fields are
// confirmed after a sweep, on the engine's executor; fields nobody reads are
// validated against their own resolver before anything is committed. Either
// way a rejection restores the previous override.
//
// Lifecycle:
// Idle -> Resolving -> Idle during a sweep, and Idle -> Ordered exactly once.
// Ordered is terminal: every later mutation is rejected and Resolve is a
// no-op.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Sweeps and lifecycle events are stamped with Clock.Next(). NEVER use
// wall-clock timestamps for ordering.
//
// Deterministic Scheduling:
// Fields are evaluated in topological order with ties broken by
// declaration order. No randomness, no concurrency, no map iteration order
// leaks into results.
package engine
