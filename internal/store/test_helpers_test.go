package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const testFixtures = `
product:
  - {product_id: 1, sku: TEE, name: Tee, price: 1000, weight: 200}
  - {product_id: 2, sku: MUG, name: Mug, price: 1500, weight: 400, tax_class: reduced}
product_tier_price:
  - {product_id: 1, customer_group_id: 1, qty: 3, price: 900}
  - {product_id: 1, customer_group_id: 1, qty: 1, price: 950}
cart_address:
  - {cart_address_id: 7, full_name: Ada, address: 1 Main St, city: Springfield, country: US}
cart:
  - {cart_id: 1}
  - {cart_id: 2, status: 0}
cart_item:
  - {cart_id: 1, item_id: a, product_id: 1, qty: 2}
  - {cart_id: 1, item_id: b, product_id: 2, qty: 1, product_price: 1200}
`

func seedTestStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	f, err := ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	require.NoError(t, s.Seed(context.Background(), f))
	return s
}
