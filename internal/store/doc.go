// Package store provides SQLite-backed persistence for carts, the catalog
// and committed orders.
//
// The store exposes a small row-level table API (Load, Insert, Update,
// Query, Count) over IR values, shared by Store and Tx:
//   - Rows are ir.IRObject keyed by column name
//   - Insert ignores keys that are not columns, so a resolved cart snapshot
//     can be written straight into the orders table
//   - Arrays and objects are stored as RFC 8785 canonical JSON text
//
// # Critical Patterns
//
// Deterministic Query Results:
//   - Query always orders by primary key
//   - Column and predicate order follow sorted key order, never map order
//
// Atomic Commits:
//   - WithTx commits only when its callback succeeds and passes the
//     callback's error through unchanged
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
