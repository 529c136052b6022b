package cart

import (
	"strings"

	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/ir"
)

// Cart field names.
const (
	CartID             = "cart_id"
	Currency           = "currency"
	CustomerID         = "customer_id"
	CustomerGroupID    = "customer_group_id"
	CustomerEmail      = "customer_email"
	CustomerFullName   = "customer_full_name"
	UserIP             = "user_ip"
	UserAgent          = "user_agent"
	Status             = "status"
	ShippingAddressID  = "shipping_address_id"
	BillingAddressID   = "billing_address_id"
	Items              = "items"
	TotalQty           = "total_qty"
	TotalWeight        = "total_weight"
	SubTotal           = "sub_total"
	Coupon             = "coupon"
	DiscountAmount     = "discount_amount"
	ShippingMethod     = "shipping_method"
	ShippingMethodName = "shipping_method_name"
	ShippingFeeExclTax = "shipping_fee_excl_tax"
	ShippingFeeInclTax = "shipping_fee_incl_tax"
	TaxAmount          = "tax_amount"
	PaymentMethod      = "payment_method"
	PaymentMethodName  = "payment_method_name"
	ShippingNote       = "shipping_note"
	GrandTotal         = "grand_total"
)

// Failure messages shown to shoppers.
const (
	MsgEmailEmpty           = "Customer email could not be empty"
	MsgNameEmpty            = "Customer name could not be empty"
	MsgShippingAddressEmpty = "Shipping address can not be empty"
	MsgCouponInvalid        = "Coupon is invalid"
	MsgShippingMethodEmpty  = "Shipping method can not be empty"
	MsgPaymentMethodEmpty   = "Payment method can not be empty"
)

// Fields returns the cart field catalogue in declaration order.
func Fields() []engine.Field[*Env] {
	return []engine.Field[*Env]{
		{Name: CartID},
		{Name: Currency, Resolve: resolveCurrency},
		{Name: CustomerID, Resolve: resolveCustomerID},
		{Name: CustomerGroupID, DependsOn: []string{CustomerID}, Resolve: resolveCustomerGroup},
		{Name: CustomerEmail, DependsOn: []string{CustomerID}, Resolve: actorOrOverride(func(a Actor) string { return a.Email }, MsgEmailEmpty)},
		{Name: CustomerFullName, DependsOn: []string{CustomerID}, Resolve: actorOrOverride(func(a Actor) string { return a.FullName }, MsgNameEmpty)},
		{Name: UserIP, Resolve: func(_ engine.View, env *Env) (ir.IRValue, error) { return stringOrNull(env.Client.IP), nil }},
		{Name: UserAgent, Resolve: func(_ engine.View, env *Env) (ir.IRValue, error) { return stringOrNull(env.Client.UserAgent), nil }},
		{Name: Status, Resolve: resolveStatus},
		{Name: ShippingAddressID, Resolve: resolveShippingAddress},
		{Name: BillingAddressID, Resolve: resolveBillingAddress},
		{Name: Items, DependsOn: []string{CartID, CustomerGroupID, ShippingAddressID}, Resolve: resolveItems},
		{Name: TotalQty, DependsOn: []string{Items}, Resolve: sumItems(func(it ir.IRObject) int64 { return ir.AsInt(it[Qty]) })},
		{Name: TotalWeight, DependsOn: []string{Items}, Resolve: sumItems(func(it ir.IRObject) int64 { return ir.AsInt(it[ProductWeight]) * ir.AsInt(it[Qty]) })},
		{Name: SubTotal, DependsOn: []string{Items}, Resolve: sumItems(func(it ir.IRObject) int64 { return ir.AsInt(it[FinalPrice]) * ir.AsInt(it[Qty]) })},
		{Name: Coupon, Resolve: resolveCoupon},
		{Name: DiscountAmount, DependsOn: []string{Coupon, SubTotal}, Resolve: resolveDiscount},
		{Name: ShippingMethod, DependsOn: []string{SubTotal}, Resolve: resolveShippingMethod},
		{Name: ShippingMethodName, DependsOn: []string{ShippingMethod}, Resolve: resolveShippingMethodName},
		{Name: ShippingFeeExclTax, DependsOn: []string{ShippingMethod, TotalWeight, SubTotal}, Resolve: resolveShippingFee},
		{Name: ShippingFeeInclTax, DependsOn: []string{ShippingFeeExclTax}, Resolve: resolveShippingFeeInclTax},
		{Name: TaxAmount, DependsOn: []string{Items, ShippingFeeExclTax, ShippingFeeInclTax}, Resolve: resolveTaxAmount},
		{Name: PaymentMethod, DependsOn: []string{SubTotal}, Resolve: resolvePaymentMethod},
		{Name: PaymentMethodName, DependsOn: []string{PaymentMethod}, Resolve: resolvePaymentMethodName},
		{Name: ShippingNote},
		{Name: GrandTotal, DependsOn: []string{SubTotal, DiscountAmount, TaxAmount, ShippingFeeExclTax, PaymentMethod}, Resolve: resolveGrandTotal},
	}
}

func stringOrNull(s string) ir.IRValue {
	if s == "" {
		return ir.Null
	}
	return ir.IRString(s)
}

func resolveCurrency(_ engine.View, env *Env) (ir.IRValue, error) {
	return ir.IRString(env.Config.General.Currency), nil
}

func resolveCustomerID(_ engine.View, env *Env) (ir.IRValue, error) {
	if !env.Actor.LoggedIn() {
		return ir.Null, nil
	}
	return ir.IRInt(env.Actor.ID), nil
}

func resolveCustomerGroup(v engine.View, env *Env) (ir.IRValue, error) {
	if ir.IsNull(v.Get(CustomerID)) {
		return ir.IRInt(AnonymousGroup), nil
	}
	if env.Actor.GroupID > 0 {
		return ir.IRInt(env.Actor.GroupID), nil
	}
	return ir.IRInt(DefaultGroup), nil
}

// actorOrOverride uses the logged-in actor's attribute, else the value the
// shopper supplied.
func actorOrOverride(attr func(Actor) string, missing string) engine.Resolver[*Env] {
	return func(v engine.View, env *Env) (ir.IRValue, error) {
		if !ir.IsNull(v.Get(CustomerID)) {
			if s := attr(env.Actor); s != "" {
				return ir.IRString(s), nil
			}
		}
		if s := strings.TrimSpace(ir.AsString(v.Self())); s != "" {
			return ir.IRString(s), nil
		}
		return ir.Null, engine.Fail(missing)
	}
}

func resolveStatus(v engine.View, _ *Env) (ir.IRValue, error) {
	if s, ok := v.Self().(ir.IRInt); ok {
		return s, nil
	}
	return ir.IRInt(1), nil
}

// resolveShippingAddress keeps the supplied id even when it does not
// resolve, so the failure can name it.
func resolveShippingAddress(v engine.View, env *Env) (ir.IRValue, error) {
	id := v.Self()
	found, err := env.address(id)
	if err != nil {
		return id, err
	}
	if !found {
		return id, engine.Fail(MsgShippingAddressEmpty)
	}
	return id, nil
}

func resolveBillingAddress(v engine.View, env *Env) (ir.IRValue, error) {
	id := v.Self()
	found, err := env.address(id)
	if err != nil || !found {
		return ir.Null, err
	}
	return id, nil
}

// resolveItems materialises the lines: from the items override when one is
// set, else from the persisted lines of cart_id.
func resolveItems(v engine.View, env *Env) (ir.IRValue, error) {
	rows, ok := v.Override(Items)
	if !ok {
		cartID, isID := v.Get(CartID).(ir.IRInt)
		if !isID || env.loader == nil {
			rows = ir.IRArray{}
		} else {
			loaded, err := env.loader.Items(env.ctx, int64(cartID))
			if err != nil {
				return env.items.objects(), err
			}
			rows = loaded
		}
	}
	return env.items.reconcile(ir.AsArray(rows), ir.AsInt(v.Get(CustomerGroupID)))
}

func sumItems(term func(ir.IRObject) int64) engine.Resolver[*Env] {
	return func(v engine.View, _ *Env) (ir.IRValue, error) {
		var total int64
		for _, it := range ir.AsArray(v.Get(Items)) {
			total += term(ir.AsObject(it))
		}
		return ir.IRInt(total), nil
	}
}

func resolveCoupon(v engine.View, _ *Env) (ir.IRValue, error) {
	code := strings.ToUpper(strings.TrimSpace(ir.AsString(v.Self())))
	return stringOrNull(code), nil
}

func resolveDiscount(v engine.View, env *Env) (ir.IRValue, error) {
	code := ir.AsString(v.Get(Coupon))
	if code == "" {
		return ir.IRInt(0), nil
	}
	sub := ir.AsInt(v.Get(SubTotal))
	cp, ok := env.Config.Coupon(code)
	if !ok || sub < cp.MinSubTotal {
		return ir.IRInt(0), engine.Fail(MsgCouponInvalid)
	}
	discount := percentOf(sub, cp.Percent) + cp.Amount
	return ir.IRInt(min(discount, sub)), nil
}

func resolveShippingMethod(v engine.View, env *Env) (ir.IRValue, error) {
	code := ir.AsString(v.Self())
	if _, ok := env.Config.ShippingMethod(code); !ok {
		return ir.Null, engine.Fail(MsgShippingMethodEmpty)
	}
	return ir.IRString(code), nil
}

func resolveShippingMethodName(v engine.View, env *Env) (ir.IRValue, error) {
	if m, ok := env.Config.ShippingMethod(ir.AsString(v.Get(ShippingMethod))); ok {
		return ir.IRString(m.Name), nil
	}
	return v.Self(), nil
}

// resolveShippingFee charges the method fee plus per_kg for every started
// kilogram, unless the sub total reaches the method's free_over threshold.
func resolveShippingFee(v engine.View, env *Env) (ir.IRValue, error) {
	m, ok := env.Config.ShippingMethod(ir.AsString(v.Get(ShippingMethod)))
	if !ok {
		return ir.IRInt(0), nil
	}
	if m.FreeOver > 0 && ir.AsInt(v.Get(SubTotal)) >= m.FreeOver {
		return ir.IRInt(0), nil
	}
	kg := ceilDiv(ir.AsInt(v.Get(TotalWeight)), 1000)
	return ir.IRInt(m.Fee + m.PerKg*kg), nil
}

func resolveShippingFeeInclTax(v engine.View, env *Env) (ir.IRValue, error) {
	excl := ir.AsInt(v.Get(ShippingFeeExclTax))
	return ir.IRInt(withPercent(excl, env.Config.Tax.ShippingPercent)), nil
}

func resolveTaxAmount(v engine.View, _ *Env) (ir.IRValue, error) {
	var tax int64
	for _, it := range ir.AsArray(v.Get(Items)) {
		tax += ir.AsInt(ir.AsObject(it)[ItemTaxAmount])
	}
	tax += ir.AsInt(v.Get(ShippingFeeInclTax)) - ir.AsInt(v.Get(ShippingFeeExclTax))
	return ir.IRInt(tax), nil
}

func resolvePaymentMethod(v engine.View, env *Env) (ir.IRValue, error) {
	code := ir.AsString(v.Self())
	m, ok := env.Config.PaymentMethod(code)
	if !ok || !m.Accepts(ir.AsInt(v.Get(SubTotal))) {
		return ir.Null, engine.Fail(MsgPaymentMethodEmpty)
	}
	return ir.IRString(code), nil
}

func resolvePaymentMethodName(v engine.View, env *Env) (ir.IRValue, error) {
	if m, ok := env.Config.PaymentMethod(ir.AsString(v.Get(PaymentMethod))); ok {
		return ir.IRString(m.Name), nil
	}
	return v.Self(), nil
}

func resolveGrandTotal(v engine.View, _ *Env) (ir.IRValue, error) {
	total := ir.AsInt(v.Get(SubTotal)) -
		ir.AsInt(v.Get(DiscountAmount)) +
		ir.AsInt(v.Get(TaxAmount)) +
		ir.AsInt(v.Get(ShippingFeeExclTax))
	return ir.IRInt(total), nil
}
