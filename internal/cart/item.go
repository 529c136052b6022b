package cart

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// Item field names.
const (
	ItemID        = "item_id"
	ProductID     = "product_id"
	ProductSKU    = "product_sku"
	ProductName   = "product_name"
	ProductWeight = "product_weight"
	ProductPrice  = "product_price"
	Qty           = "qty"
	FinalPrice    = "final_price"
	TaxPercent    = "tax_percent"
	ItemTaxAmount = "tax_amount"
	ItemTotal     = "total"

	// ItemError is not a field; it is added to every item object and holds
	// the line's latest failure message, or null.
	ItemError = "error"
)

// itemInputs are the keys of an item row that become overrides when a
// line is hydrated. The collection stamps CustomerGroupID itself.
var itemInputs = []string{ItemID, ProductID, Qty, ProductPrice}

// ItemFields returns the line item field set in declaration order.
func ItemFields() []engine.Field[*ItemEnv] {
	return []engine.Field[*ItemEnv]{
		{Name: ItemID},
		{Name: ProductID},
		{Name: CustomerGroupID},
		{Name: ProductSKU, DependsOn: []string{ProductID}, Resolve: productAttr(func(p store.Product) ir.IRValue { return ir.IRString(p.SKU) })},
		{Name: ProductName, DependsOn: []string{ProductID}, Resolve: productAttr(func(p store.Product) ir.IRValue { return ir.IRString(p.Name) })},
		{Name: ProductWeight, DependsOn: []string{ProductID}, Resolve: resolveProductWeight},
		{Name: ProductPrice, DependsOn: []string{ProductID}, Resolve: resolveProductPrice},
		{Name: Qty, Resolve: resolveQty},
		{Name: FinalPrice, DependsOn: []string{ProductID, CustomerGroupID, ProductPrice, Qty}, Resolve: resolveFinalPrice},
		{Name: TaxPercent, DependsOn: []string{ProductID}, Resolve: resolveTaxPercent},
		{Name: ItemTaxAmount, DependsOn: []string{FinalPrice, Qty, TaxPercent}, Resolve: resolveItemTax},
		{Name: ItemTotal, DependsOn: []string{FinalPrice, Qty, ItemTaxAmount}, Resolve: resolveItemTotal},
	}
}

var itemGraph = sync.OnceValues(func() (*engine.Graph[*ItemEnv], error) {
	return engine.Compile(ItemFields())
})

func productAttr(get func(store.Product) ir.IRValue) engine.Resolver[*ItemEnv] {
	return func(v engine.View, env *ItemEnv) (ir.IRValue, error) {
		p, ok, err := env.product(v.Get(ProductID))
		if err != nil || !ok {
			return ir.Null, err
		}
		return get(p), nil
	}
}

func resolveProductWeight(v engine.View, env *ItemEnv) (ir.IRValue, error) {
	p, ok, err := env.product(v.Get(ProductID))
	if err != nil || !ok {
		return ir.IRInt(0), err
	}
	return ir.IRInt(p.Weight), nil
}

func resolveProductPrice(v engine.View, env *ItemEnv) (ir.IRValue, error) {
	if price, ok := v.Self().(ir.IRInt); ok && price >= 0 {
		return price, nil
	}
	p, ok, err := env.product(v.Get(ProductID))
	if err != nil {
		return ir.Null, err
	}
	if !ok {
		return ir.Null, engine.Fail(MsgProductMissing)
	}
	return ir.IRInt(p.Price), nil
}

func resolveQty(v engine.View, _ *ItemEnv) (ir.IRValue, error) {
	qty := v.Self()
	if n, ok := qty.(ir.IRInt); !ok || n < 1 {
		return qty, engine.Fail(MsgQtyInvalid)
	}
	return qty, nil
}

// resolveFinalPrice picks the lowest tier price the cart's customer group
// qualifies for, or the product price.
func resolveFinalPrice(v engine.View, env *ItemEnv) (ir.IRValue, error) {
	base, ok := v.Get(ProductPrice).(ir.IRInt)
	if !ok {
		return ir.Null, nil
	}
	p, found, err := env.product(v.Get(ProductID))
	if err != nil || !found {
		return base, err
	}
	qty := ir.AsInt(v.Get(Qty))
	group := ir.AsInt(v.Get(CustomerGroupID))
	best := int64(base)
	for _, tp := range p.TierPrices {
		if tp.CustomerGroupID == group && qty >= tp.Qty && tp.Price < best {
			best = tp.Price
		}
	}
	return ir.IRInt(best), nil
}

func resolveTaxPercent(v engine.View, env *ItemEnv) (ir.IRValue, error) {
	p, ok, err := env.product(v.Get(ProductID))
	if err != nil {
		return ir.IRInt(0), err
	}
	class := ""
	if ok {
		class = p.TaxClass
	}
	return ir.IRInt(env.Config.TaxPercent(class)), nil
}

func resolveItemTax(v engine.View, _ *ItemEnv) (ir.IRValue, error) {
	line := ir.AsInt(v.Get(FinalPrice)) * ir.AsInt(v.Get(Qty))
	return ir.IRInt(percentOf(line, ir.AsInt(v.Get(TaxPercent)))), nil
}

func resolveItemTotal(v engine.View, _ *ItemEnv) (ir.IRValue, error) {
	line := ir.AsInt(v.Get(FinalPrice)) * ir.AsInt(v.Get(Qty))
	return ir.IRInt(line + ir.AsInt(v.Get(ItemTaxAmount))), nil
}

// LineItem is one cart line with its own field engine.
type LineItem struct {
	id  string
	eng *engine.Engine[*ItemEnv]
}

// ID returns the line's identity.
func (li *LineItem) ID() string { return li.id }

// Get returns a resolved item field.
func (li *LineItem) Get(name string) ir.IRValue { return li.eng.Value(name) }

// Snapshot returns the item fields in evaluation order.
func (li *LineItem) Snapshot() ir.Snapshot { return li.eng.Snapshot() }

// Errors returns every failure of the line's last sweep.
func (li *LineItem) Errors() []*engine.ValidationError { return li.eng.Errors() }

// Err returns the line's latest failure, or nil.
func (li *LineItem) Err() error { return li.eng.Err() }

// Object returns the item fields plus ItemError.
func (li *LineItem) Object() ir.IRObject {
	obj := li.eng.Snapshot().Object()
	obj[ItemError] = ir.Null
	if err := li.eng.Err(); err != nil {
		obj[ItemError] = ir.IRString(err.Error())
	}
	return obj
}

// regroup moves the line to another customer group's pricing.
func (li *LineItem) regroup(group int64) error {
	overrides := li.eng.Overrides()
	if ir.Equal(overrides[CustomerGroupID], ir.IRInt(group)) {
		return nil
	}
	overrides[CustomerGroupID] = ir.IRInt(group)
	return li.eng.Load(overrides)
}

// Collection holds the materialised lines of one cart.
//
// Lines are cached by item id. reconcile is the only place the visible
// order changes: it reuses cached lines, hydrates new rows and drops lines
// that no longer appear.
type Collection struct {
	graph  *engine.Graph[*ItemEnv]
	env    *ItemEnv
	opts   []engine.Option
	logger *slog.Logger

	order []*LineItem
	cache map[string]*LineItem
}

func newCollection(g *engine.Graph[*ItemEnv], env *ItemEnv, logger *slog.Logger, opts ...engine.Option) *Collection {
	return &Collection{
		graph:  g,
		env:    env,
		opts:   opts,
		logger: logger,
		cache:  make(map[string]*LineItem),
	}
}

// hydrate creates and resolves a line from an item row, priced for group,
// without adding it.
func (c *Collection) hydrate(row ir.IRObject, group int64) (*LineItem, error) {
	id := ir.AsString(row[ItemID])
	if id == "" {
		return nil, fmt.Errorf("item row without %s", ItemID)
	}
	inputs := ir.IRObject{}
	for _, key := range itemInputs {
		if v, ok := row[key]; ok && !ir.IsNull(v) {
			inputs[key] = v
		}
	}
	inputs[CustomerGroupID] = ir.IRInt(group)

	eng := engine.New(c.graph, c.env, c.opts...)
	if err := eng.Load(inputs); err != nil {
		return nil, err
	}
	eng.Resolve()
	return &LineItem{id: id, eng: eng}, nil
}

// stage caches a hydrated line so the next reconcile reuses it.
func (c *Collection) stage(li *LineItem) {
	c.cache[li.id] = li
}

// reconcile makes the collection match rows, priced for group, and returns
// the item objects.
func (c *Collection) reconcile(rows ir.IRArray, group int64) (ir.IRArray, error) {
	var failure error
	order := make([]*LineItem, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, r := range rows {
		row := ir.AsObject(r)
		id := ir.AsString(row[ItemID])
		if id == "" {
			failure = engine.Failf("Item %d has no id", i)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		li, cached := c.cache[id]
		if cached {
			if err := li.regroup(group); err != nil {
				failure = err
			}
			li.eng.Resolve()
		} else {
			var err error
			li, err = c.hydrate(row, group)
			if err != nil {
				failure = err
				continue
			}
			c.cache[id] = li
			c.logger.Debug("item hydrated", "item_id", id)
		}
		order = append(order, li)
	}

	for id := range c.cache {
		if !seen[id] {
			delete(c.cache, id)
		}
	}
	c.order = order
	return c.objects(), failure
}

// objects returns the visible lines as item objects.
func (c *Collection) objects() ir.IRArray {
	out := make(ir.IRArray, len(c.order))
	for i, li := range c.order {
		out[i] = li.Object()
	}
	return out
}

// without returns the visible item objects minus id.
func (c *Collection) without(id string) ir.IRArray {
	out := make(ir.IRArray, 0, len(c.order))
	for _, li := range c.order {
		if li.id != id {
			out = append(out, li.Object())
		}
	}
	return out
}

func (c *Collection) get(id string) (*LineItem, bool) {
	for _, li := range c.order {
		if li.id == id {
			return li, true
		}
	}
	return nil, false
}

func (c *Collection) lines() []*LineItem {
	out := make([]*LineItem, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Collection) clear() {
	c.order = nil
	c.cache = make(map[string]*LineItem)
}
