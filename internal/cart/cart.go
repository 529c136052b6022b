// Package cart is the shopping cart: its field catalogue, its line items
// and the session lifecycle around them.
//
// A Cart wraps one engine.Engine over the cart fields of Fields. Lines are
// child engines over ItemFields, materialised by the items field and
// folded into cart aggregates (total_qty, sub_total, tax_amount) by
// ordinary dependent fields.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cartflow/internal/bus"
	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/future"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// MsgCartDisabled is the rejection of every mutation after the order is placed.
const MsgCartDisabled = "Cart is disabled"

var (
	// ErrInvalidCart is returned by InitFromID for missing or inactive carts.
	ErrInvalidCart = errors.New("Invalid cart")

	// ErrAlreadyBound is returned by InitFromID on a cart that already has an id.
	ErrAlreadyBound = errors.New("cart is already initialised")
)

// Graph is a compiled cart field graph.
type Graph = engine.Graph[*Env]

// Registrar contributes cart fields before the graph is built.
type Registrar = engine.Registrar[*Env]

// Compile builds the cart graph from Fields plus registrars.
func Compile(registrars ...Registrar) (*Graph, error) {
	return engine.Compile(Fields(), registrars...)
}

// Deps are the collaborators a cart consumes.
type Deps struct {
	// Store serves cart rows, the catalog and addresses. Required.
	Store Store

	// Items supplies persisted lines. Nil means carts start empty.
	Items ItemLoader

	// Config defaults to config.Default().
	Config *config.Config

	// Bus receives lifecycle events. Nil disables publishing.
	Bus *bus.Bus
}

type options struct {
	ctx        context.Context
	logger     *slog.Logger
	actor      Actor
	client     Client
	exec       future.Executor
	clock      engine.Sequencer
	tokens     engine.TokenGenerator
	graph      *Graph
	registrars []Registrar
}

// Option configures a Cart.
type Option func(*options)

// WithContext sets the context used for store lookups made by resolvers.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithActor sets the authenticated identity. Default: anonymous.
func WithActor(a Actor) Option {
	return func(o *options) { o.actor = a }
}

// WithClient sets request metadata.
func WithClient(c Client) Option {
	return func(o *options) { o.client = c }
}

// WithExecutor sets the executor confirming cart mutations.
func WithExecutor(exec future.Executor) Option {
	return func(o *options) { o.exec = exec }
}

// WithClock sets the sequencer stamping sweeps and events.
func WithClock(c engine.Sequencer) Option {
	return func(o *options) { o.clock = c }
}

// WithTokens sets the generator of session tokens and new item ids.
// Default: engine.UUIDv7Generator.
func WithTokens(g engine.TokenGenerator) Option {
	return func(o *options) { o.tokens = g }
}

// WithGraph reuses a compiled graph instead of compiling Fields.
func WithGraph(g *Graph) Option {
	return func(o *options) { o.graph = g }
}

// WithRegistrars adds extension fields when the cart compiles its graph.
// Ignored when WithGraph is set.
func WithRegistrars(rs ...Registrar) Option {
	return func(o *options) { o.registrars = append(o.registrars, rs...) }
}

// Cart is one checkout session's cart.
//
// A Cart is owned by a single session and is not safe for concurrent use.
type Cart struct {
	eng     *engine.Engine[*Env]
	env     *Env
	items   *Collection
	bus     *bus.Bus
	tokens  engine.TokenGenerator
	clock   engine.Sequencer
	session string
	logger  *slog.Logger
}

// New creates an unbound cart and resolves it once.
//
// Returns the graph's error (e.g. *graph.CycleError) when extension fields
// do not compile; no cart exists then.
func New(deps Deps, opts ...Option) (*Cart, error) {
	if deps.Store == nil {
		return nil, errors.New("new cart: store is required")
	}
	o := options{
		ctx:    context.Background(),
		logger: slog.Default(),
		exec:   future.Immediate,
		clock:  engine.NewClock(),
		tokens: engine.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}

	g := o.graph
	if g == nil {
		var err error
		if g, err = Compile(o.registrars...); err != nil {
			return nil, fmt.Errorf("new cart: %w", err)
		}
	}
	ig, err := itemGraph()
	if err != nil {
		return nil, fmt.Errorf("new cart: item fields: %w", err)
	}

	session := o.tokens.Generate()
	logger := o.logger.With("session", session)

	itemEnv := &ItemEnv{
		Config:   cfg,
		ctx:      o.ctx,
		store:    deps.Store,
		products: make(map[int64]store.Product),
	}
	items := newCollection(ig, itemEnv, logger,
		engine.WithName("item"),
		engine.WithSession(session),
		engine.WithLogger(o.logger),
		engine.WithClock(o.clock),
	)
	env := &Env{
		Config: cfg,
		Actor:  o.actor,
		Client: o.client,
		ctx:    o.ctx,
		store:  deps.Store,
		loader: deps.Items,
		items:  items,
	}

	c := &Cart{
		env:     env,
		items:   items,
		bus:     deps.Bus,
		tokens:  o.tokens,
		clock:   o.clock,
		session: session,
		logger:  logger,
	}
	c.eng = engine.New(g, env,
		engine.WithName("cart"),
		engine.WithSession(session),
		engine.WithLogger(o.logger),
		engine.WithExecutor(o.exec),
		engine.WithClock(o.clock),
		engine.WithObserver(c.observe),
	)
	c.eng.Resolve()

	logger.Info("cart created", "fields", g.Len(), "logged_in", o.actor.LoggedIn())
	return c, nil
}

// observe republishes engine sweeps on the bus.
func (c *Cart) observe(ev engine.Event) {
	if ev.Kind != engine.EventSwept {
		return
	}
	c.publish(bus.Event{Name: bus.CartUpdated, Seq: ev.Seq})
}

func (c *Cart) publish(ev bus.Event) {
	if c.bus == nil {
		return
	}
	if ev.Seq == 0 {
		ev.Seq = c.clock.Next()
	}
	ev.Session = c.session
	ev.CartID = ir.AsInt(c.eng.Value(CartID))
	c.bus.Publish(ev)
}

// Session returns the cart's session token.
func (c *Cart) Session() string { return c.session }

// Env returns the resolver context.
func (c *Cart) Env() *Env { return c.env }

// Graph returns the compiled cart graph.
func (c *Cart) Graph() *Graph { return c.eng.Graph() }

// State returns the engine lifecycle state.
func (c *Cart) State() engine.State { return c.eng.State() }

// Pending returns the field awaiting confirmation, or "".
func (c *Cart) Pending() string { return c.eng.Pending() }

// OrderID returns the order id once the cart is ordered.
func (c *Cart) OrderID() (int64, bool) { return c.eng.OrderID() }

// Get returns a resolved field and whether it exists.
func (c *Cart) Get(name string) (ir.IRValue, bool) { return c.eng.Get(name) }

// Value returns a resolved field, or IRNull.
func (c *Cart) Value(name string) ir.IRValue { return c.eng.Value(name) }

// Snapshot returns every cart field in evaluation order.
func (c *Cart) Snapshot() ir.Snapshot { return c.eng.Snapshot() }

// Errors returns every failure captured by the last sweep.
func (c *Cart) Errors() []*engine.ValidationError { return c.eng.Errors() }

// Err returns the latest failure of the last sweep, or nil.
func (c *Cart) Err() error { return c.eng.Err() }

// FieldErr returns the failure of one field, or nil.
func (c *Cart) FieldErr(name string) error { return c.eng.FieldErr(name) }

// Items returns the materialised lines in cart order.
func (c *Cart) Items() []*LineItem { return c.items.lines() }

// Item returns the line with id.
func (c *Cart) Item(id string) (*LineItem, bool) { return c.items.get(id) }

// ItemObjects returns the lines as item objects, including ItemError.
func (c *Cart) ItemObjects() []ir.IRObject {
	lines := c.items.lines()
	out := make([]ir.IRObject, len(lines))
	for i, li := range lines {
		out[i] = li.Object()
	}
	return out
}

// MarkOrdered makes the cart terminal. Called by the order committer once
// its transaction has committed.
func (c *Cart) MarkOrdered(orderID int64) error {
	return c.eng.MarkOrdered(orderID)
}

func (c *Cart) disabled(field string) *engine.MutationRejected {
	if c.eng.State() == engine.Ordered {
		return engine.Reject(engine.RejectOrdered, field, MsgCartDisabled)
	}
	return nil
}

// SetField proposes a value for a cart field. See engine.Engine.SetField.
func (c *Cart) SetField(name string, value ir.IRValue) *future.Future[ir.IRValue] {
	if rej := c.disabled(name); rej != nil {
		return future.Reject[ir.IRValue](rej)
	}
	return c.eng.SetField(name, value)
}

// guard rejects collection mutations the cart engine would refuse anyway,
// before any line is touched.
func (c *Cart) guard() *engine.MutationRejected {
	if rej := c.disabled(Items); rej != nil {
		return rej
	}
	switch {
	case c.eng.State() == engine.Resolving:
		return engine.Reject(engine.RejectResolving, Items, "Can not set value when resolves are running")
	case c.eng.Pending() != "":
		return engine.Reject(engine.RejectInFlight, Items,
			fmt.Sprintf("Can not set value while %s is awaiting confirmation", c.eng.Pending()))
	}
	return nil
}

// provisionalItemID names a line that is validated before its real id is
// drawn.
const provisionalItemID = "pending-item"

func rejectItem(rej *engine.MutationRejected) *future.Future[*LineItem] {
	return future.Reject[*LineItem](rej)
}

// AddItem adds a line. The future resolves with the line once the items
// field has been re-resolved and the line is present.
func (c *Cart) AddItem(in ItemInput) *future.Future[*LineItem] {
	if rej := c.guard(); rej != nil {
		return rejectItem(rej)
	}
	if err := validate.Struct(in); err != nil {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, inputMessage(err)))
	}

	if _, exists := c.items.get(in.ItemID); exists {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, fmt.Sprintf("Item %s already exists", in.ItemID)))
	}

	// A generated id is only drawn for a line that validates.
	group := ir.AsInt(c.eng.Value(CustomerGroupID))
	id := in.ItemID
	if id == "" {
		id = provisionalItemID
	}
	li, err := c.items.hydrate(in.row(id), group)
	if err != nil {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, err.Error()))
	}
	if err := li.Err(); err != nil {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, err.Error()))
	}
	if in.ItemID == "" {
		id = c.tokens.Generate()
		if _, exists := c.items.get(id); exists {
			return rejectItem(engine.Reject(engine.RejectInvalid, Items, fmt.Sprintf("Item %s already exists", id)))
		}
		if li, err = c.items.hydrate(in.row(id), group); err != nil {
			return rejectItem(engine.Reject(engine.RejectInvalid, Items, err.Error()))
		}
	}
	c.items.stage(li)

	rows := append(c.items.objects(), li.Object())
	return future.Then(c.eng.SetField(Items, rows), func(ir.IRValue) (*LineItem, error) {
		if _, ok := c.items.get(id); !ok {
			return nil, engine.Reject(engine.RejectContradicted, Items, "Item could not be added")
		}
		c.logger.Info("item added", "item_id", id)
		c.publish(bus.Event{Name: bus.ItemAdded, ItemID: id, Data: li.Object()})
		return li, nil
	})
}

// RemoveItem removes a line. The future resolves with the removed line once
// the items field has been re-resolved without it.
func (c *Cart) RemoveItem(id string) *future.Future[*LineItem] {
	if rej := c.guard(); rej != nil {
		return rejectItem(rej)
	}
	li, ok := c.items.get(id)
	if !ok {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, fmt.Sprintf("Item %s does not exist", id)))
	}

	return future.Then(c.eng.SetField(Items, c.items.without(id)), func(ir.IRValue) (*LineItem, error) {
		if _, still := c.items.get(id); still {
			return nil, engine.Reject(engine.RejectContradicted, Items, "Item could not be removed")
		}
		c.logger.Info("item removed", "item_id", id)
		c.publish(bus.Event{Name: bus.ItemRemoved, ItemID: id, Data: li.Object()})
		return li, nil
	})
}

// UpdateItemQty changes a line's qty through the line's own engine, then
// re-resolves the cart. A rejected cart update restores the old qty.
func (c *Cart) UpdateItemQty(id string, qty int64) *future.Future[*LineItem] {
	if rej := c.guard(); rej != nil {
		return rejectItem(rej)
	}
	li, ok := c.items.get(id)
	if !ok {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, fmt.Sprintf("Item %s does not exist", id)))
	}
	if qty < 1 {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, MsgQtyInvalid))
	}

	prev := li.Get(Qty)
	if _, err := li.eng.SetField(Qty, ir.IRInt(qty)).Wait(); err != nil {
		return rejectItem(engine.Reject(engine.RejectInvalid, Items, err.Error()))
	}

	fut := c.eng.SetField(Items, c.items.objects())
	fut.OnSettle(func(_ ir.IRValue, err error) {
		if err == nil {
			return
		}
		// The cart already re-swept with the rejected qty; sweep again
		// once the line is back at its old qty.
		if _, err := li.eng.SetField(Qty, prev).Wait(); err == nil {
			c.eng.Resolve()
		}
	})
	return future.Then(fut, func(ir.IRValue) (*LineItem, error) {
		c.logger.Info("item updated", "item_id", id, "qty", qty)
		c.publish(bus.Event{Name: bus.ItemUpdated, ItemID: id, Data: li.Object()})
		return li, nil
	})
}

// InitFromID binds the cart to a persisted cart row and re-resolves.
// Values already set on this cart take precedence over the row.
func (c *Cart) InitFromID(ctx context.Context, id int64) error {
	if c.eng.State() == engine.Ordered {
		return errors.New(MsgCartDisabled)
	}
	if _, bound := c.eng.Override(CartID); bound {
		return fmt.Errorf("init cart %d: %w", id, ErrAlreadyBound)
	}

	row, ok, err := c.env.store.Load(ctx, "cart", id)
	if err != nil {
		return fmt.Errorf("init cart %d: %w", id, err)
	}
	if !ok || ir.AsInt(row["status"]) == 0 {
		return fmt.Errorf("init cart %d: %w", id, ErrInvalidCart)
	}

	merged := c.eng.Overrides()
	for _, key := range row.SortedKeys() {
		if ir.IsNull(row[key]) || !c.eng.Graph().Has(key) {
			continue
		}
		if _, set := merged[key]; !set {
			merged[key] = row[key]
		}
	}
	merged[CartID] = ir.IRInt(id)
	if err := c.eng.Load(merged); err != nil {
		return fmt.Errorf("init cart %d: %w", id, err)
	}
	c.eng.Resolve()

	c.logger.Info("cart initialised", "cart_id", id)
	return nil
}

// Destroy clears every override and line and returns to an unbound cart.
func (c *Cart) Destroy() error {
	if err := c.eng.Reset(); err != nil {
		return fmt.Errorf("destroy cart: %w", err)
	}
	c.items.clear()
	c.eng.Resolve()
	c.logger.Info("cart destroyed")
	return nil
}
