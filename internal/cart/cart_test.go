package cart

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartflow/internal/bus"
	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/future"
	"github.com/roach88/cartflow/internal/graph"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

const cartFixtures = `
product:
  - {product_id: 1, sku: TEE, name: Tee, price: 1000, weight: 200}
  - {product_id: 2, sku: MUG, name: Mug, price: 1500, weight: 400, tax_class: reduced}
  - {product_id: 3, sku: OLD, name: Old, price: 100, status: 0}
product_tier_price:
  - {product_id: 1, customer_group_id: 1, qty: 3, price: 900}
cart_address:
  - {cart_address_id: 7, full_name: Ada, address: 1 Main St, city: Springfield, country: US}
cart:
  - {cart_id: 1, shipping_note: leave at door}
  - {cart_id: 2, status: 0}
cart_item:
  - {cart_id: 1, item_id: a, product_id: 1, qty: 2}
  - {cart_id: 1, item_id: b, product_id: 2, qty: 1, product_price: 1200}
`

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f, err := store.ParseFixtures([]byte(cartFixtures))
	require.NoError(t, err)
	require.NoError(t, s.Seed(context.Background(), f))
	return s
}

type testCart struct {
	*Cart
	store  *store.Store
	source *store.ItemSource
	events *bus.Recorder
}

func newTestCart(t *testing.T, opts ...Option) *testCart {
	t.Helper()
	s := openTestStore(t)
	src := store.NewItemSource(s)
	b := bus.New()
	rec := &bus.Recorder{}
	b.Subscribe(rec.Handle)

	opts = append([]Option{WithTokens(engine.NewSequenceGenerator("tok"))}, opts...)
	c, err := New(Deps{Store: s, Items: src, Config: config.Default(), Bus: b}, opts...)
	require.NoError(t, err)
	return &testCart{Cart: c, store: s, source: src, events: rec}
}

func price(n int64) *int64 { return &n }

func mustAdd(t *testing.T, c *Cart, in ItemInput) *LineItem {
	t.Helper()
	li, err := c.AddItem(in).Wait()
	require.NoError(t, err)
	return li
}

func set(t *testing.T, c *Cart, field string, v ir.IRValue) {
	t.Helper()
	_, err := c.SetField(field, v).Wait()
	require.NoError(t, err)
}

func intField(c *Cart, name string) int64 { return ir.AsInt(c.Value(name)) }

func TestEmptyCart(t *testing.T) {
	c := newTestCart(t)

	assert.Equal(t, "tok-1", c.Session())
	assert.Equal(t, int64(0), intField(c.Cart, TotalQty))
	assert.Equal(t, int64(0), intField(c.Cart, SubTotal))
	assert.Equal(t, int64(0), intField(c.Cart, GrandTotal))
	assert.Equal(t, ir.IRArray{}, c.Value(Items))
	assert.Equal(t, ir.IRString("USD"), c.Value(Currency))
	assert.Equal(t, ir.IRInt(AnonymousGroup), c.Value(CustomerGroupID))
	assert.Equal(t, ir.IRInt(1), c.Value(Status))
	assert.Equal(t, ir.Null, c.Value(CustomerID))
	assert.Equal(t, Fields()[0].Name, c.Snapshot()[0].Name)

	assert.EqualError(t, c.FieldErr(ShippingAddressID), MsgShippingAddressEmpty)
	assert.EqualError(t, c.FieldErr(CustomerEmail), MsgEmailEmpty)
	assert.NoError(t, c.FieldErr(DiscountAmount))
}

func TestAddItemWithExplicitPrice(t *testing.T) {
	c := newTestCart(t)

	li := mustAdd(t, c.Cart, ItemInput{Price: price(10), Qty: 2})

	assert.Equal(t, "tok-2", li.ID())
	assert.Equal(t, int64(2), intField(c.Cart, TotalQty))
	assert.Equal(t, int64(20), intField(c.Cart, SubTotal))
	assert.Equal(t, ir.Null, li.Get(ProductSKU))
	assert.NoError(t, li.Err())

	items := ir.AsArray(c.Value(Items))
	require.Len(t, items, 1)
	assert.Equal(t, ir.Null, ir.AsObject(items[0])[ItemError])
}

func TestAddCatalogItem(t *testing.T) {
	c := newTestCart(t)

	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})

	assert.Equal(t, ir.IRString("TEE"), li.Get(ProductSKU))
	assert.Equal(t, ir.IRString("Tee"), li.Get(ProductName))
	assert.Equal(t, ir.IRInt(1000), li.Get(FinalPrice))
	assert.Equal(t, ir.IRInt(10), li.Get(TaxPercent))
	assert.Equal(t, ir.IRInt(200), li.Get(ItemTaxAmount))
	assert.Equal(t, ir.IRInt(2200), li.Get(ItemTotal))

	assert.Equal(t, int64(400), intField(c.Cart, TotalWeight))
	assert.Equal(t, int64(2000), intField(c.Cart, SubTotal))
	assert.Equal(t, int64(200), intField(c.Cart, TaxAmount))
	assert.Equal(t, int64(2200), intField(c.Cart, GrandTotal))
}

func TestTierPriceForLoggedInGroup(t *testing.T) {
	c := newTestCart(t, WithActor(Actor{ID: 5, Email: "ada@example.com", FullName: "Ada"}))

	assert.Equal(t, ir.IRInt(DefaultGroup), c.Value(CustomerGroupID))
	assert.Equal(t, ir.IRString("ada@example.com"), c.Value(CustomerEmail))

	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 3})
	assert.Equal(t, ir.IRInt(DefaultGroup), li.Get(CustomerGroupID))
	assert.Equal(t, ir.IRInt(900), li.Get(FinalPrice))
	assert.Equal(t, int64(2700), intField(c.Cart, SubTotal))

	_, err := c.UpdateItemQty(li.ID(), 2).Wait()
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(1000), li.Get(FinalPrice))
	assert.Equal(t, int64(2000), intField(c.Cart, SubTotal))
}

func TestAddItemRejections(t *testing.T) {
	tests := []struct {
		name string
		in   ItemInput
		msg  string
	}{
		{"unknown product", ItemInput{ProductID: 42, Qty: 1}, MsgProductMissing},
		{"disabled product", ItemInput{ProductID: 3, Qty: 1}, MsgProductMissing},
		{"no product or price", ItemInput{Qty: 1}, MsgProductMissing},
		{"zero qty", ItemInput{ProductID: 1}, MsgQtyInvalid},
		{"negative price", ItemInput{Price: price(-1), Qty: 1}, MsgPriceInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCart(t)
			_, err := c.AddItem(tt.in).Wait()
			require.Error(t, err)
			assert.Equal(t, engine.RejectInvalid, engine.RejectionCode(err))
			assert.EqualError(t, err, tt.msg)
			assert.Empty(t, c.Items())
		})
	}
}

func TestRejectedAddDrawsNoItemID(t *testing.T) {
	c := newTestCart(t)

	_, err := c.AddItem(ItemInput{ProductID: 42, Qty: 1}).Wait()
	require.Error(t, err)
	assert.EqualError(t, err, MsgProductMissing)

	li := mustAdd(t, c.Cart, ItemInput{Price: price(250), Qty: 2})
	assert.Equal(t, "tok-2", li.ID())
	require.Len(t, c.Items(), 1)
	assert.Equal(t, ir.IRString("tok-2"), li.Get(ItemID))
}

func TestLineRegroupChangesTierPrice(t *testing.T) {
	c := newTestCart(t)
	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 3})
	assert.Equal(t, ir.IRInt(AnonymousGroup), li.Get(CustomerGroupID))
	assert.Equal(t, ir.IRInt(1000), li.Get(FinalPrice))

	require.NoError(t, li.regroup(DefaultGroup))
	li.eng.Resolve()
	assert.Equal(t, ir.IRInt(DefaultGroup), li.Get(CustomerGroupID))
	assert.Equal(t, ir.IRInt(900), li.Get(FinalPrice))
}

func TestAddDuplicateItemID(t *testing.T) {
	c := newTestCart(t)
	mustAdd(t, c.Cart, ItemInput{ItemID: "x", ProductID: 1, Qty: 1})

	_, err := c.AddItem(ItemInput{ItemID: "x", ProductID: 2, Qty: 1}).Wait()
	assert.Equal(t, engine.RejectInvalid, engine.RejectionCode(err))
	assert.Len(t, c.Items(), 1)
}

func TestRemoveItem(t *testing.T) {
	c := newTestCart(t)
	tee := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})
	mustAdd(t, c.Cart, ItemInput{ProductID: 2, Qty: 1})
	require.Equal(t, int64(3500), intField(c.Cart, SubTotal))

	removed, err := c.RemoveItem(tee.ID()).Wait()
	require.NoError(t, err)
	assert.Same(t, tee, removed)

	_, ok := c.Item(tee.ID())
	assert.False(t, ok)
	assert.Equal(t, int64(1500), intField(c.Cart, SubTotal))
	assert.Equal(t, int64(1), intField(c.Cart, TotalQty))

	_, err = c.RemoveItem("missing").Wait()
	assert.Equal(t, engine.RejectInvalid, engine.RejectionCode(err))
}

func TestUpdateItemQtyRejections(t *testing.T) {
	c := newTestCart(t)
	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})

	_, err := c.UpdateItemQty(li.ID(), 0).Wait()
	assert.EqualError(t, err, MsgQtyInvalid)

	_, err = c.UpdateItemQty("missing", 1).Wait()
	assert.Equal(t, engine.RejectInvalid, engine.RejectionCode(err))

	assert.Equal(t, ir.IRInt(2), li.Get(Qty))
}

func TestContradictedQtyUpdateRestoresTotals(t *testing.T) {
	// items hides every line once any line exceeds qty 5, so the cart
	// contradicts the update while the line stays cached.
	capped := engine.Registrar[*Env](graph.RegistrarFunc[engine.Resolver[*Env]](func(b *graph.Builder[engine.Resolver[*Env]]) error {
		return engine.Declare(b, engine.Field[*Env]{
			Name:      Items,
			DependsOn: []string{CartID, CustomerGroupID, ShippingAddressID},
			Resolve: func(v engine.View, env *Env) (ir.IRValue, error) {
				rows, err := resolveItems(v, env)
				for _, r := range ir.AsArray(rows) {
					if ir.AsInt(ir.AsObject(r)[Qty]) > 5 {
						return ir.IRArray{}, err
					}
				}
				return rows, err
			},
		})
	}))

	c := newTestCart(t, WithRegistrars(capped))
	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})
	require.Equal(t, int64(2), intField(c.Cart, TotalQty))

	_, err := c.UpdateItemQty(li.ID(), 6).Wait()
	require.Error(t, err)
	assert.Equal(t, engine.RejectContradicted, engine.RejectionCode(err))

	assert.Equal(t, ir.IRInt(2), li.Get(Qty))
	assert.Equal(t, int64(2), intField(c.Cart, TotalQty))
	assert.Equal(t, int64(2000), intField(c.Cart, SubTotal))
	assert.Equal(t, engine.Idle, c.State())
}

func TestShippingAndTotals(t *testing.T) {
	c := newTestCart(t)
	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})

	set(t, c.Cart, ShippingMethod, ir.IRString("flat"))
	assert.Equal(t, ir.IRString("Flat rate"), c.Value(ShippingMethodName))
	assert.Equal(t, int64(500), intField(c.Cart, ShippingFeeExclTax))
	assert.Equal(t, int64(550), intField(c.Cart, ShippingFeeInclTax))
	assert.Equal(t, int64(250), intField(c.Cart, TaxAmount))
	assert.Equal(t, int64(2750), intField(c.Cart, GrandTotal))

	set(t, c.Cart, ShippingMethod, ir.IRString("express"))
	assert.Equal(t, int64(1700), intField(c.Cart, ShippingFeeExclTax))
	assert.Equal(t, int64(1870), intField(c.Cart, ShippingFeeInclTax))
	assert.Equal(t, int64(4070), intField(c.Cart, GrandTotal))
}

func TestFreeShippingOverThreshold(t *testing.T) {
	c := newTestCart(t)
	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 10})
	set(t, c.Cart, ShippingMethod, ir.IRString("flat"))

	assert.Equal(t, int64(10000), intField(c.Cart, SubTotal))
	assert.Equal(t, int64(0), intField(c.Cart, ShippingFeeExclTax))
}

func TestUnknownShippingMethodIsContradicted(t *testing.T) {
	c := newTestCart(t)

	_, err := c.SetField(ShippingMethod, ir.IRString("pigeon")).Wait()
	assert.Equal(t, engine.RejectContradicted, engine.RejectionCode(err))
	assert.Equal(t, ir.Null, c.Value(ShippingMethod))
	_, has := c.eng.Override(ShippingMethod)
	assert.False(t, has)
	assert.EqualError(t, c.FieldErr(ShippingMethod), MsgShippingMethodEmpty)
}

func TestShippingMethodNameLeafMismatch(t *testing.T) {
	c := newTestCart(t)
	set(t, c.Cart, ShippingMethod, ir.IRString("flat"))

	_, err := c.SetField(ShippingMethodName, ir.IRString("X")).Wait()
	assert.Equal(t, engine.RejectMismatch, engine.RejectionCode(err))
	assert.Equal(t, ir.IRString("Flat rate"), c.Value(ShippingMethodName))
}

func TestCoupons(t *testing.T) {
	c := newTestCart(t)
	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})

	_, err := c.SetField(Coupon, ir.IRString("save10")).Wait()
	assert.Equal(t, engine.RejectContradicted, engine.RejectionCode(err), "coupons are stored upper-cased")

	set(t, c.Cart, Coupon, ir.IRString("SAVE10"))
	assert.Equal(t, int64(200), intField(c.Cart, DiscountAmount))
	assert.Equal(t, int64(2000), intField(c.Cart, GrandTotal))

	set(t, c.Cart, Coupon, ir.IRString("FIVEOFF"))
	assert.Equal(t, int64(500), intField(c.Cart, DiscountAmount))

	set(t, c.Cart, Coupon, ir.IRString("BOGUS"))
	assert.Equal(t, int64(0), intField(c.Cart, DiscountAmount))
	assert.EqualError(t, c.FieldErr(DiscountAmount), MsgCouponInvalid)
}

func TestPaymentMethod(t *testing.T) {
	c := newTestCart(t)
	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 2})

	set(t, c.Cart, PaymentMethod, ir.IRString("cod"))
	assert.Equal(t, ir.IRString("Cash on delivery"), c.Value(PaymentMethodName))
	assert.NoError(t, c.FieldErr(PaymentMethod))

	_, err := c.SetField(PaymentMethod, ir.IRString("bitcoin")).Wait()
	assert.Equal(t, engine.RejectContradicted, engine.RejectionCode(err))
	assert.Equal(t, ir.IRString("cod"), c.Value(PaymentMethod))
}

func TestMissingShippingAddress(t *testing.T) {
	c := newTestCart(t)

	set(t, c.Cart, ShippingAddressID, ir.IRInt(999))
	assert.Equal(t, ir.IRInt(999), c.Value(ShippingAddressID))
	assert.EqualError(t, c.FieldErr(ShippingAddressID), MsgShippingAddressEmpty)
	assert.True(t, engine.IsValidationError(c.FieldErr(ShippingAddressID)))

	set(t, c.Cart, ShippingAddressID, ir.IRInt(7))
	assert.NoError(t, c.FieldErr(ShippingAddressID))

	_, err := c.SetField(BillingAddressID, ir.IRInt(999)).Wait()
	assert.Equal(t, engine.RejectMismatch, engine.RejectionCode(err))
	assert.Equal(t, ir.Null, c.Value(BillingAddressID))

	set(t, c.Cart, BillingAddressID, ir.IRInt(7))
	assert.Equal(t, ir.IRInt(7), c.Value(BillingAddressID))
}

func TestAnonymousCustomerFields(t *testing.T) {
	c := newTestCart(t)

	set(t, c.Cart, CustomerEmail, ir.IRString("guest@example.com"))
	set(t, c.Cart, CustomerFullName, ir.IRString("Guest"))
	assert.NoError(t, c.FieldErr(CustomerEmail))
	assert.NoError(t, c.FieldErr(CustomerFullName))
	assert.Equal(t, ir.IRString("guest@example.com"), c.Value(CustomerEmail))
}

func TestLoggedInEmailIsAuthoritative(t *testing.T) {
	c := newTestCart(t, WithActor(Actor{ID: 5, GroupID: 2, Email: "ada@example.com", FullName: "Ada"}))

	assert.Equal(t, ir.IRInt(2), c.Value(CustomerGroupID))
	_, err := c.SetField(CustomerEmail, ir.IRString("other@example.com")).Wait()
	assert.Equal(t, engine.RejectMismatch, engine.RejectionCode(err))
	assert.Equal(t, ir.IRString("ada@example.com"), c.Value(CustomerEmail))
}

func TestClientMetadata(t *testing.T) {
	c := newTestCart(t, WithClient(Client{IP: "10.0.0.1", UserAgent: "test"}))
	assert.Equal(t, ir.IRString("10.0.0.1"), c.Value(UserIP))
	assert.Equal(t, ir.IRString("test"), c.Value(UserAgent))
}

func TestInitFromIDLoadsPersistedItemsOnce(t *testing.T) {
	c := newTestCart(t)

	require.NoError(t, c.InitFromID(context.Background(), 1))

	assert.Equal(t, ir.IRInt(1), c.Value(CartID))
	assert.Equal(t, ir.IRString("leave at door"), c.Value(ShippingNote))
	require.Len(t, c.Items(), 2)
	assert.Equal(t, int64(3), intField(c.Cart, TotalQty))
	assert.Equal(t, int64(800), intField(c.Cart, TotalWeight))
	assert.Equal(t, int64(3200), intField(c.Cart, SubTotal))
	assert.Equal(t, int64(260), intField(c.Cart, TaxAmount))
	assert.Equal(t, int64(3460), intField(c.Cart, GrandTotal))

	set(t, c.Cart, ShippingNote, ir.IRString("ring twice"))
	set(t, c.Cart, ShippingAddressID, ir.IRInt(7))
	assert.Equal(t, int64(1), c.source.Loads())

	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 1})
	assert.Len(t, c.Items(), 3)
	assert.Equal(t, int64(4200), intField(c.Cart, SubTotal))

	err := c.InitFromID(context.Background(), 1)
	assert.ErrorIs(t, err, ErrAlreadyBound)
}

func TestInitFromIDInvalid(t *testing.T) {
	for _, id := range []int64{2, 99} {
		c := newTestCart(t)
		err := c.InitFromID(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidCart, "cart %d", id)
		assert.Equal(t, ir.Null, c.Value(CartID))
	}
}

func TestDestroy(t *testing.T) {
	c := newTestCart(t)
	require.NoError(t, c.InitFromID(context.Background(), 1))

	require.NoError(t, c.Destroy())
	assert.Equal(t, ir.Null, c.Value(CartID))
	assert.Empty(t, c.Items())
	assert.Equal(t, int64(0), intField(c.Cart, SubTotal))

	require.NoError(t, c.InitFromID(context.Background(), 1))
	assert.Len(t, c.Items(), 2)
}

func TestOrderedCartIsDisabled(t *testing.T) {
	c := newTestCart(t)
	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 1})
	before := c.Snapshot()

	require.NoError(t, c.MarkOrdered(42))
	id, ok := c.OrderID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, err := c.SetField(ShippingNote, ir.IRString("late")).Wait()
	assert.EqualError(t, err, MsgCartDisabled)
	assert.Equal(t, engine.RejectOrdered, engine.RejectionCode(err))

	_, err = c.AddItem(ItemInput{ProductID: 1, Qty: 1}).Wait()
	assert.Equal(t, engine.RejectOrdered, engine.RejectionCode(err))
	_, err = c.RemoveItem(li.ID()).Wait()
	assert.Equal(t, engine.RejectOrdered, engine.RejectionCode(err))
	_, err = c.UpdateItemQty(li.ID(), 5).Wait()
	assert.Equal(t, engine.RejectOrdered, engine.RejectionCode(err))

	assert.Error(t, c.Destroy())
	assert.Error(t, c.InitFromID(context.Background(), 1))
	assert.Equal(t, before, c.Snapshot())
}

func TestEventsPublished(t *testing.T) {
	c := newTestCart(t)
	li := mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 1})
	_, err := c.UpdateItemQty(li.ID(), 2).Wait()
	require.NoError(t, err)
	_, err = c.RemoveItem(li.ID()).Wait()
	require.NoError(t, err)

	assert.Equal(t, []bus.Name{
		bus.CartUpdated, // New
		bus.CartUpdated, bus.ItemAdded,
		bus.CartUpdated, bus.ItemUpdated,
		bus.CartUpdated, bus.ItemRemoved,
	}, c.events.Names())

	for _, ev := range c.events.Events() {
		assert.Equal(t, "tok-1", ev.Session)
	}
	added := c.events.Events()[2]
	assert.Equal(t, li.ID(), added.ItemID)
	assert.Equal(t, ir.IRInt(1), added.Data[Qty])
}

func TestQueuedConfirmation(t *testing.T) {
	q := future.NewQueue()
	c := newTestCart(t, WithExecutor(q))

	fut := c.AddItem(ItemInput{ProductID: 1, Qty: 1})
	assert.Equal(t, future.Pending, fut.State())
	assert.Equal(t, Items, c.Pending())

	_, err := c.AddItem(ItemInput{ProductID: 2, Qty: 1}).Wait()
	assert.Equal(t, engine.RejectInFlight, engine.RejectionCode(err))

	q.Drain()
	li, err := fut.Wait()
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(1), li.Get(Qty))
	assert.Empty(t, c.Pending())
}

func TestExtensionFields(t *testing.T) {
	giftWrap := engine.Registrar[*Env](graph.RegistrarFunc[engine.Resolver[*Env]](func(b *graph.Builder[engine.Resolver[*Env]]) error {
		return engine.Declare(b, engine.Field[*Env]{
			Name:      "gift_wrap_fee",
			DependsOn: []string{TotalQty},
			Resolve: func(v engine.View, _ *Env) (ir.IRValue, error) {
				return ir.IRInt(ir.AsInt(v.Get(TotalQty)) * 50), nil
			},
		})
	}))

	c := newTestCart(t, WithRegistrars(giftWrap))
	mustAdd(t, c.Cart, ItemInput{ProductID: 1, Qty: 3})
	assert.Equal(t, ir.IRInt(150), c.Value("gift_wrap_fee"))
}

func TestCyclicExtensionAbortsCreation(t *testing.T) {
	cyclic := engine.Registrar[*Env](graph.RegistrarFunc[engine.Resolver[*Env]](func(b *graph.Builder[engine.Resolver[*Env]]) error {
		// coupon <- loyalty <- discount_amount <- coupon
		if err := engine.Declare(b, engine.Field[*Env]{Name: "loyalty", DependsOn: []string{DiscountAmount}}); err != nil {
			return err
		}
		return engine.Declare(b, engine.Field[*Env]{Name: Coupon, DependsOn: []string{"loyalty"}, Resolve: resolveCoupon})
	}))

	s := openTestStore(t)
	_, err := New(Deps{Store: s}, WithRegistrars(cyclic))
	require.Error(t, err)
	assert.True(t, graph.IsCycleError(err))

	var ce *graph.CycleError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Participants, Coupon)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
