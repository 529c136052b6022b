// Package order turns a resolved cart into a persisted order.
//
// Commit checks the cart is ready, then writes the order addresses, the
// order header, one row per line, an activity record and the cart's new
// status in a single transaction. A failing step rolls every write back and
// surfaces its cause unchanged inside a *CommitError. Only after the
// transaction commits is the cart marked Ordered.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cartflow/internal/bus"
	"github.com/roach88/cartflow/internal/cart"
	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/future"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// Commit failure messages shown to shoppers.
const (
	MsgItemError = "There is an error in shopping cart item"
)

// Initial statuses of a new order.
const (
	ShipmentPending = "pending"
	PaymentPending  = "pending"
)

// ActivityCreated is the comment of the first order activity.
const ActivityCreated = "Order created"

// Orderable is the cart surface the committer consumes. *cart.Cart
// implements it.
type Orderable interface {
	Session() string
	State() engine.State
	Pending() string
	Snapshot() ir.Snapshot
	Value(name string) ir.IRValue
	Err() error
	ItemObjects() []ir.IRObject
	OrderID() (int64, bool)
	MarkOrdered(orderID int64) error
}

// Store is the persistence the committer writes through. *store.Store
// implements it.
type Store interface {
	store.Tables
	WithTx(ctx context.Context, fn func(store.Tables) error) error
}

type options struct {
	config *config.Config
	logger *slog.Logger
	bus    *bus.Bus
	clock  engine.Sequencer
}

// Option configures a Committer.
type Option func(*options)

// WithConfig sets the configuration holding order.number_offset.
// Default: config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBus publishes order_created events on b.
func WithBus(b *bus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithClock sets the sequencer stamping published events. Share the cart's
// clock to keep one ordering across cart and order events.
func WithClock(c engine.Sequencer) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Committer commits carts into orders.
//
// Thread-safety: a Committer may be shared; each Orderable must still be
// driven by one goroutine at a time.
type Committer struct {
	store Store
	opts  options
}

// NewCommitter creates a Committer writing through s.
func NewCommitter(s Store, opts ...Option) *Committer {
	o := options{logger: slog.Default(), clock: engine.NewClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.config == nil {
		o.config = config.Default()
	}
	return &Committer{store: s, opts: o}
}

// Commit converts c into an order and returns the order id.
//
// A cart that is already ordered returns its order id without writing
// anything. Any other failure is a *CommitError and leaves c unordered.
func (cm *Committer) Commit(ctx context.Context, c Orderable) (int64, error) {
	if id, ok := c.OrderID(); ok {
		cm.opts.logger.Debug("commit skipped, already ordered", "session", c.Session(), "order_id", id)
		return id, nil
	}

	start := time.Now()
	logger := cm.opts.logger.With("session", c.Session())

	shipping, err := cm.checkCart(ctx, c)
	if err != nil {
		recordCommit(ctx, time.Since(start), StepPrecondition)
		logger.Info("commit refused", "reason", err.Error())
		return 0, &CommitError{Step: StepPrecondition, Cause: err}
	}

	var orderID, number int64
	err = cm.store.WithTx(ctx, func(tx store.Tables) error {
		var err error
		orderID, number, err = cm.write(ctx, tx, c, shipping)
		return err
	})
	if err != nil {
		var ce *CommitError
		if !errors.As(err, &ce) {
			ce = &CommitError{Step: StepTx, Cause: err}
		}
		recordRollback(ctx, ce.Step)
		recordCommit(ctx, time.Since(start), ce.Step)
		logger.Error("order commit rolled back", "step", string(ce.Step), "error", ce.Cause)
		return 0, ce
	}

	if err := c.MarkOrdered(orderID); err != nil {
		// The order exists; the cart could not record it.
		logger.Error("mark cart ordered", "order_id", orderID, "error", err)
		return orderID, fmt.Errorf("commit order %d: %w", orderID, err)
	}
	recordCommit(ctx, time.Since(start), "")
	logger.Info("order committed", "order_id", orderID, "order_number", number)

	if cm.opts.bus != nil {
		cm.opts.bus.Publish(bus.Event{
			Name:    bus.OrderCreated,
			Seq:     cm.opts.clock.Next(),
			Session: c.Session(),
			CartID:  ir.AsInt(c.Value(cart.CartID)),
			OrderID: orderID,
			Data:    ir.IRObject{"order_number": ir.IRInt(number)},
		})
	}
	return orderID, nil
}

// CommitAsync runs Commit on exec. An already ordered cart resolves
// immediately.
func (cm *Committer) CommitAsync(ctx context.Context, c Orderable, exec future.Executor) *future.Future[int64] {
	if id, ok := c.OrderID(); ok {
		return future.Resolved(id)
	}
	return future.Defer(exec, func() (int64, error) {
		return cm.Commit(ctx, c)
	})
}

// checkCart returns the persisted shipping address, or the reason the cart
// can not be ordered yet.
func (cm *Committer) checkCart(ctx context.Context, c Orderable) (ir.IRObject, error) {
	var shipping ir.IRObject
	if id, ok := c.Value(cart.ShippingAddressID).(ir.IRInt); ok {
		row, found, err := cm.store.Load(ctx, "cart_address", int64(id))
		if err != nil {
			return nil, err
		}
		if found {
			shipping = row
		}
	}
	if shipping == nil {
		return nil, &engine.ValidationError{Field: cart.ShippingAddressID, Message: cart.MsgShippingAddressEmpty}
	}

	if err := c.Err(); err != nil {
		return nil, err
	}
	for _, it := range c.ItemObjects() {
		if !ir.IsNull(it[cart.ItemError]) {
			return nil, &engine.ValidationError{Field: cart.Items, Message: MsgItemError}
		}
	}

	if c.State() != engine.Idle || c.Pending() != "" {
		return nil, fmt.Errorf("cart is %s with %q pending: %w", c.State(), c.Pending(), engine.ErrIllegalTransition)
	}
	return shipping, nil
}

// write performs every commit step on tx. Errors are *CommitError values
// naming the step.
func (cm *Committer) write(ctx context.Context, tx store.Tables, c Orderable, shipping ir.IRObject) (orderID, number int64, err error) {
	fail := func(step Step, cause error) (int64, int64, error) {
		return 0, 0, &CommitError{Step: step, Cause: cause}
	}

	next, err := tx.NextID(ctx, "orders")
	if err != nil {
		return fail(StepNumber, err)
	}
	number = cm.opts.config.Order.NumberOffset + next

	shippingID, err := tx.Insert(ctx, "order_address", addressRow(shipping))
	if err != nil {
		return fail(StepAddress, err)
	}
	billing := shipping
	if id, ok := c.Value(cart.BillingAddressID).(ir.IRInt); ok {
		row, found, err := tx.Load(ctx, "cart_address", int64(id))
		if err != nil {
			return fail(StepAddress, err)
		}
		if found {
			billing = row
		}
	}
	billingID, err := tx.Insert(ctx, "order_address", addressRow(billing))
	if err != nil {
		return fail(StepAddress, err)
	}

	header, err := headerRow(c.Snapshot())
	if err != nil {
		return fail(StepHeader, err)
	}
	header["order_number"] = ir.IRInt(number)
	header["shipping_address_id"] = ir.IRInt(shippingID)
	header["billing_address_id"] = ir.IRInt(billingID)
	orderID, err = tx.Insert(ctx, "orders", header)
	if err != nil {
		return fail(StepHeader, err)
	}

	for _, it := range c.ItemObjects() {
		row := it.Clone()
		row["order_id"] = ir.IRInt(orderID)
		if _, err := tx.Insert(ctx, "order_item", row); err != nil {
			return fail(StepItems, err)
		}
	}

	if _, err := tx.Insert(ctx, "order_activity", ir.IRObject{
		"order_id":          ir.IRInt(orderID),
		"comment":           ir.IRString(ActivityCreated),
		"customer_notified": ir.IRBool(false),
	}); err != nil {
		return fail(StepActivity, err)
	}

	if cartID, ok := c.Value(cart.CartID).(ir.IRInt); ok {
		where := ir.IRObject{"cart_id": cartID}
		if _, err := tx.Update(ctx, "cart", where, ir.IRObject{"status": ir.IRInt(0)}); err != nil {
			return fail(StepCart, err)
		}
	}
	return orderID, number, nil
}

// headerRow is the cart snapshot plus the order's own columns. Keys the
// orders table does not have are dropped on insert.
func headerRow(snap ir.Snapshot) (ir.IRObject, error) {
	row := snap.Object()
	hash, err := ir.SnapshotHash(row)
	if err != nil {
		return nil, err
	}
	row["snapshot_hash"] = ir.IRString(hash)
	row["shipment_status"] = ir.IRString(ShipmentPending)
	row["payment_status"] = ir.IRString(PaymentPending)
	return row, nil
}

// addressRow copies a cart address for order_address, without its id.
func addressRow(addr ir.IRObject) ir.IRObject {
	row := addr.Clone()
	delete(row, "cart_address_id")
	return row
}
