// Package harness runs checkout scenarios against a real cart, store and
// order committer.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: checkout_success
//	description: "Anonymous shopper checks out one line"
//	session: golden-session
//	actor: { id: 5, email: ada@example.com, full_name: Ada }
//	fixtures:
//	  product:
//	    - { product_id: 1, sku: TEE, name: Tee, price: 1000, weight: 200 }
//	steps:
//	  - add_item: { product_id: 1, qty: 2 }
//	  - set: { field: shipping_method, value: flat }
//	  - commit: {}
//	    expect: { outcome: fulfilled, value: 1 }
//	assertions:
//	  - type: field
//	    field: grand_total
//	    value: 2750
//	  - type: order_count
//	    count: 1
//
// A step holds exactly one of set, add_item, remove_item, update_qty or
// commit. Its optional expect clause checks the outcome ("fulfilled" or
// "rejected"), the value and a substring of the error.
//
// # Assertion Types
//
//   - field: a resolved cart field equals value
//   - error: the field's failure message equals message (empty: no failure);
//     without field, the cart's latest failure
//   - final_state: with state, the cart lifecycle state ("idle", "ordered");
//     with table, some row matching where contains expect
//   - order_count: the number of persisted orders
//
// # Deterministic Testing
//
// Every run uses a fresh SQLite store, a fixed session token followed by
// numbered item ids (testutil.Tokens) and a logical clock stamping each
// trace event (testutil.DeterministicClock). The same scenario always
// produces the same trace, which RunWithGolden compares against
// testdata/golden/<name>.golden.
package harness
