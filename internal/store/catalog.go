package store

import (
	"context"
	"fmt"

	"github.com/roach88/cartflow/internal/ir"
)

// TierPrice is a quantity-break price for one customer group.
type TierPrice struct {
	CustomerGroupID int64
	Qty             int64
	Price           int64
}

// Product is a catalog entry with its tier prices.
type Product struct {
	ID         int64
	SKU        string
	Name       string
	Price      int64
	Weight     int64
	TaxClass   string
	Status     int64
	TierPrices []TierPrice
}

// Product loads a product and its tier prices. Tier prices are ordered by
// qty, then price.
func (t tableSet) Product(ctx context.Context, id int64) (Product, bool, error) {
	row, ok, err := t.Load(ctx, "product", id)
	if err != nil || !ok {
		return Product{}, false, err
	}
	p := Product{
		ID:       ir.AsInt(row["product_id"]),
		SKU:      ir.AsString(row["sku"]),
		Name:     ir.AsString(row["name"]),
		Price:    ir.AsInt(row["price"]),
		Weight:   ir.AsInt(row["weight"]),
		TaxClass: ir.AsString(row["tax_class"]),
		Status:   ir.AsInt(row["status"]),
	}

	rows, err := t.q.QueryContext(ctx, `
		SELECT customer_group_id, qty, price
		FROM product_tier_price
		WHERE product_id = ?
		ORDER BY qty ASC, price ASC, tier_price_id ASC
	`, id)
	if err != nil {
		return Product{}, false, fmt.Errorf("query tier prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tp TierPrice
		if err := rows.Scan(&tp.CustomerGroupID, &tp.Qty, &tp.Price); err != nil {
			return Product{}, false, fmt.Errorf("scan tier price: %w", err)
		}
		p.TierPrices = append(p.TierPrices, tp)
	}
	if err := rows.Err(); err != nil {
		return Product{}, false, fmt.Errorf("iterate tier prices: %w", err)
	}
	return p, true, nil
}

// Address loads a cart address.
func (t tableSet) Address(ctx context.Context, id int64) (ir.IRObject, bool, error) {
	return t.Load(ctx, "cart_address", id)
}
