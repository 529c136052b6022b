package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cartflow/internal/ir"
)

// ItemSource lazily loads persisted cart lines. Each cart's rows are read
// once and memoised; concurrent first loads for the same cart share one
// query.
//
// Thread-safety: all methods are safe for concurrent use.
type ItemSource struct {
	tables Tables
	group  singleflight.Group

	mu    sync.Mutex
	memo  map[int64]ir.IRArray
	loads atomic.Int64
}

// NewItemSource creates an ItemSource reading cart_item through tables.
func NewItemSource(tables Tables) *ItemSource {
	return &ItemSource{tables: tables, memo: make(map[int64]ir.IRArray)}
}

// Items returns the persisted rows of a cart as objects with item_id,
// product_id, qty and product_price. The returned array is a copy.
func (s *ItemSource) Items(ctx context.Context, cartID int64) (ir.IRArray, error) {
	s.mu.Lock()
	if rows, ok := s.memo[cartID]; ok {
		s.mu.Unlock()
		return cloneRows(rows), nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(strconv.FormatInt(cartID, 10), func() (any, error) {
		s.loads.Add(1)
		rows, err := s.tables.Query(ctx, "cart_item", ir.IRObject{"cart_id": ir.IRInt(cartID)})
		if err != nil {
			return nil, err
		}
		items := make(ir.IRArray, len(rows))
		for i, row := range rows {
			items[i] = ir.IRObject{
				"item_id":       ir.OrNull(row["item_id"]),
				"product_id":    ir.OrNull(row["product_id"]),
				"qty":           ir.OrNull(row["qty"]),
				"product_price": ir.OrNull(row["product_price"]),
			}
		}

		s.mu.Lock()
		s.memo[cartID] = items
		s.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load items of cart %d: %w", cartID, err)
	}
	return cloneRows(v.(ir.IRArray)), nil
}

// Forget drops the memoised rows of a cart.
func (s *ItemSource) Forget(cartID int64) {
	s.mu.Lock()
	delete(s.memo, cartID)
	s.mu.Unlock()
}

// Loads returns how many queries the source has issued.
func (s *ItemSource) Loads() int64 {
	return s.loads.Load()
}

func cloneRows(rows ir.IRArray) ir.IRArray {
	out := make(ir.IRArray, len(rows))
	for i, r := range rows {
		if obj, ok := r.(ir.IRObject); ok {
			out[i] = obj.Clone()
		} else {
			out[i] = r
		}
	}
	return out
}
