package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartflow/internal/ir"
)

func TestInsertAndLoad(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "cart_address", ir.IRObject{
		"cart_address_id": ir.Null,
		"full_name":       ir.IRString("Ada"),
		"address":         ir.IRString("1 Main St"),
		"city":            ir.IRString("Springfield"),
		"country":         ir.IRString("US"),
		"postcode":        ir.Null,
		"telephone":       ir.IRString("555"),
		"not_a_col":       ir.IRString("ignored"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	row, ok, err := s.Load(ctx, "cart_address", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(1), row["cart_address_id"])
	assert.Equal(t, ir.IRString("Ada"), row["full_name"])
	assert.Equal(t, ir.Null, row["postcode"])
	_, has := row["not_a_col"]
	assert.False(t, has)

	_, ok, err = s.Load(ctx, "cart_address", 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertDefaultValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "cart", ir.IRObject{})
	require.NoError(t, err)

	row, ok, err := s.Load(ctx, "cart", id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(1), row["status"])
}

func TestJSONColumnRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	addr := ir.IRObject{
		"full_name": ir.IRString("Ada"),
		"address":   ir.IRString("1 Main St"),
		"city":      ir.IRString("Springfield"),
		"country":   ir.IRString("US"),
	}
	addrID, err := s.Insert(ctx, "order_address", addr)
	require.NoError(t, err)

	items := ir.IRArray{ir.IRObject{"item_id": ir.IRString("a"), "qty": ir.IRInt(2)}}
	orderID, err := s.Insert(ctx, "orders", ir.IRObject{
		"order_number":        ir.IRInt(10001),
		"cart_id":             ir.IRInt(1),
		"shipping_address_id": ir.IRInt(addrID),
		"billing_address_id":  ir.IRInt(addrID),
		"shipment_status":     ir.IRString("pending"),
		"payment_status":      ir.IRString("pending"),
		"snapshot_hash":       ir.IRString("h"),
		"items":               items,
	})
	require.NoError(t, err)

	row, ok, err := s.Load(ctx, "orders", orderID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ir.Equal(items, row["items"]))
	assert.Equal(t, ir.IRInt(0), row["grand_total"])

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT items FROM orders WHERE order_id = ?", orderID).Scan(&raw))
	assert.Equal(t, `[{"item_id":"a","qty":2}]`, raw)
}

func TestQueryUpdateCount(t *testing.T) {
	s := seedTestStore(t)
	ctx := context.Background()

	rows, err := s.Query(ctx, "cart_item", ir.IRObject{"cart_id": ir.IRInt(1)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ir.IRString("a"), rows[0]["item_id"])
	assert.Equal(t, ir.IRString("b"), rows[1]["item_id"])

	rows, err = s.Query(ctx, "cart_item", ir.IRObject{"product_price": ir.Null})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.IRString("a"), rows[0]["item_id"])

	n, err := s.Update(ctx, "cart", ir.IRObject{"cart_id": ir.IRInt(1)}, ir.IRObject{"status": ir.IRInt(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.Count(ctx, "cart", ir.IRObject{"status": ir.IRInt(0)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.Count(ctx, "cart", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	empty, err := s.Query(ctx, "orders", nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTableErrors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, "nope", ir.IRObject{})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.Query(ctx, "cart", ir.IRObject{"nope": ir.IRInt(1)})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = s.Update(ctx, "cart", nil, ir.IRObject{"status": ir.IRInt(0)})
	assert.Error(t, err, "empty predicate must be refused")

	_, err = s.Update(ctx, "cart", ir.IRObject{"cart_id": ir.IRInt(1)}, ir.IRObject{"nope": ir.IRInt(0)})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestNextID(t *testing.T) {
	s := seedTestStore(t)
	ctx := context.Background()

	next, err := s.NextID(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	next, err = s.NextID(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)
}

func TestWithTxRollsBackAndPassesErrorThrough(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Tables) error {
		if _, err := tx.Insert(ctx, "cart", ir.IRObject{}); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)

	count, err := s.Count(ctx, "cart", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestWithTxCommits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tables) error {
		_, err := tx.Insert(ctx, "cart", ir.IRObject{})
		return err
	})
	require.NoError(t, err)

	count, err := s.Count(ctx, "cart", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTxRollbackAfterCommitIsNoop(t *testing.T) {
	s := createTestStore(t)

	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
}

func TestProduct(t *testing.T) {
	s := seedTestStore(t)
	ctx := context.Background()

	p, ok, err := s.Product(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TEE", p.SKU)
	assert.Equal(t, int64(1000), p.Price)
	assert.Equal(t, "standard", p.TaxClass)
	assert.Equal(t, []TierPrice{
		{CustomerGroupID: 1, Qty: 1, Price: 950},
		{CustomerGroupID: 1, Qty: 3, Price: 900},
	}, p.TierPrices)

	mug, ok, err := s.Product(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "reduced", mug.TaxClass)
	assert.Empty(t, mug.TierPrices)

	_, ok, err = s.Product(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddress(t *testing.T) {
	s := seedTestStore(t)

	addr, ok, err := s.Address(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("Springfield"), addr["city"])
}

func TestItemSourceMemoises(t *testing.T) {
	s := seedTestStore(t)
	src := NewItemSource(s)
	ctx := context.Background()

	items, err := src.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	first := ir.AsObject(items[0])
	assert.Equal(t, ir.IRString("a"), first["item_id"])
	assert.Equal(t, ir.IRInt(2), first["qty"])
	assert.Equal(t, ir.Null, first["product_price"])
	assert.Equal(t, ir.IRInt(1200), ir.AsObject(items[1])["product_price"])

	// Mutating the returned copy does not leak into the memo.
	first["qty"] = ir.IRInt(99)
	again, err := src.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(2), ir.AsObject(again[0])["qty"])
	assert.Equal(t, int64(1), src.Loads())

	src.Forget(1)
	_, err = src.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.Loads())
}

func TestItemSourceConcurrentLoads(t *testing.T) {
	s := seedTestStore(t)
	src := NewItemSource(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := src.Items(context.Background(), 1)
			assert.NoError(t, err)
			assert.Len(t, items, 2)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, src.Loads(), int64(8))
	assert.GreaterOrEqual(t, src.Loads(), int64(1))
}

func TestItemSourceEmptyCart(t *testing.T) {
	s := seedTestStore(t)
	items, err := NewItemSource(s).Items(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseFixturesRejectsUnknownTable(t *testing.T) {
	_, err := ParseFixtures([]byte("widgets:\n  - {id: 1}\n"))
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestSeedRejectsUnknownColumnAtomically(t *testing.T) {
	s := createTestStore(t)
	f := Fixtures{
		"cart":    {{"cart_id": 1}},
		"product": {{"sku": "X", "name": "X", "price": 1, "colour": "red"}},
	}
	err := s.Seed(context.Background(), f)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	count, err := s.Count(context.Background(), "cart", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
