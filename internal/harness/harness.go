package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/cartflow/internal/bus"
	"github.com/roach88/cartflow/internal/cart"
	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/engine"
	"github.com/roach88/cartflow/internal/future"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/order"
	"github.com/roach88/cartflow/internal/store"
	"github.com/roach88/cartflow/internal/testutil"
)

type options struct {
	store  *store.Store
	config *config.Config
	logger *slog.Logger
}

// Option configures a run.
type Option func(*options)

// WithStore runs against an existing store instead of a fresh one. The
// scenario's fixtures are still seeded into it.
func WithStore(s *store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithConfig sets the configuration used when the scenario has no inline
// config. Default: config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger sets the logger handed to the cart and committer.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Harness executes the steps of one scenario.
type Harness struct {
	store     *store.Store
	cart      *cart.Cart
	committer *order.Committer
	clock     *testutil.DeterministicClock
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario.
//
// Execution flow:
//  1. Open a fresh store (unless WithStore) and seed the fixtures
//  2. Create the cart with deterministic tokens, bound to cart_id if given
//  3. Execute each step, tracing and checking its expect clause
//  4. Evaluate assertions against the final cart and store
//
// An error means the scenario could not be run at all; failed
// expectations are reported in the result.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := scenarioConfig(scenario, o.config)
	if err != nil {
		return nil, err
	}

	st := o.store
	if st == nil {
		dir, err := os.MkdirTemp("", "cartflow-scenario-")
		if err != nil {
			return nil, fmt.Errorf("failed to create scenario dir: %w", err)
		}
		defer os.RemoveAll(dir)

		st, err = store.Open(filepath.Join(dir, "scenario.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to create scenario store: %w", err)
		}
		defer st.Close()
	}
	if len(scenario.Fixtures) > 0 {
		if err := st.Seed(ctx, scenario.Fixtures); err != nil {
			return nil, fmt.Errorf("failed to seed fixtures: %w", err)
		}
	}

	events := &bus.Recorder{}
	b := bus.New(bus.WithLogger(o.logger))
	b.Subscribe(events.Handle)

	c, err := cart.New(
		cart.Deps{Store: st, Items: store.NewItemSource(st), Config: cfg, Bus: b},
		cart.WithContext(ctx),
		cart.WithLogger(o.logger),
		cart.WithActor(scenario.Actor),
		cart.WithClient(scenario.Client),
		cart.WithTokens(testutil.NewTokens(scenario.Session)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	if scenario.CartID > 0 {
		if err := c.InitFromID(ctx, scenario.CartID); err != nil {
			return nil, fmt.Errorf("failed to bind cart: %w", err)
		}
	}

	h := &Harness{
		store: st,
		cart:  c,
		committer: order.NewCommitter(st,
			order.WithConfig(cfg),
			order.WithLogger(o.logger),
			order.WithBus(b),
		),
		clock: testutil.NewDeterministicClock(),
	}

	result := NewResult()
	result.Session = c.Session()
	for i, step := range scenario.Steps {
		h.execute(ctx, i, step, result)
	}

	result.Snapshot = c.Snapshot()
	result.State = c.State().String()
	result.OrderID, _ = c.OrderID()
	for _, name := range events.Names() {
		result.Events = append(result.Events, string(name))
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Cart: c}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func scenarioConfig(s *Scenario, fallback *config.Config) (*config.Config, error) {
	if s.Config != "" {
		cfg, err := config.Parse([]byte(s.Config))
		if err != nil {
			return nil, fmt.Errorf("scenario config: %w", err)
		}
		return cfg, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return config.Default(), nil
}

// execute runs one step and appends its trace event.
func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) {
	ev := TraceEvent{Op: step.Op()}
	var value ir.IRValue
	var err error

	switch ev.Op {
	case OpSet:
		ev.Field = step.Set.Field
		v, convErr := ir.FromGo(step.Set.Value)
		if convErr != nil {
			result.AddError(fmt.Sprintf("steps[%d]: set %s: %v", index, ev.Field, convErr))
			return
		}
		value, err = h.cart.SetField(ev.Field, v).Wait()

	case OpAddItem:
		var li *cart.LineItem
		li, err = h.cart.AddItem(*step.AddItem).Wait()
		ev.ItemID = step.AddItem.ItemID
		if li != nil {
			ev.ItemID = li.ID()
			value = ir.IRString(li.ID())
		}

	case OpRemoveItem:
		ev.ItemID = step.RemoveItem
		_, err = h.cart.RemoveItem(step.RemoveItem).Wait()
		value = ir.IRString(step.RemoveItem)

	case OpUpdateQty:
		ev.ItemID = step.UpdateQty.ItemID
		_, err = h.cart.UpdateItemQty(step.UpdateQty.ItemID, step.UpdateQty.Qty).Wait()
		value = ir.IRString(step.UpdateQty.ItemID)

	case OpCommit:
		var id int64
		if step.Commit.Async {
			id, err = h.committer.CommitAsync(ctx, h.cart, future.Immediate).Wait()
		} else {
			id, err = h.committer.Commit(ctx, h.cart)
		}
		value = ir.IRInt(id)
	}

	ev.Seq = h.clock.Next()
	if err != nil {
		ev.Outcome = OutcomeRejected
		ev.Error = err.Error()
		ev.Code = errorCode(err)
	} else {
		ev.Outcome = OutcomeFulfilled
		ev.Value = ir.OrNull(value)
	}
	result.Trace = append(result.Trace, ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(index, ev, *step.Expect) {
			result.AddError(msg)
		}
	}
}

// errorCode returns the rejection code or failed commit step of err.
func errorCode(err error) string {
	if code := engine.RejectionCode(err); code != "" {
		return string(code)
	}
	return string(order.FailedStep(err))
}

func checkExpect(index int, ev TraceEvent, want Expect) []string {
	var errs []string
	prefix := fmt.Sprintf("steps[%d] %s", index, ev.Op)

	if want.Outcome != "" && want.Outcome != ev.Outcome {
		errs = append(errs, fmt.Sprintf("%s: expected outcome %s, got %s (%s)", prefix, want.Outcome, ev.Outcome, ev.Error))
	}
	if want.Error != "" && !strings.Contains(ev.Error, want.Error) {
		errs = append(errs, fmt.Sprintf("%s: expected error containing %q, got %q", prefix, want.Error, ev.Error))
	}
	if want.Code != "" && want.Code != ev.Code {
		errs = append(errs, fmt.Sprintf("%s: expected code %s, got %q", prefix, want.Code, ev.Code))
	}
	if want.Value != nil {
		expected, err := ir.FromGo(want.Value)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("%s: invalid expected value: %v", prefix, err))
		case ev.Value == nil || !ir.Equal(expected, ev.Value):
			errs = append(errs, fmt.Sprintf("%s: expected value %s, got %s", prefix, display(expected), display(ev.Value)))
		}
	}
	return errs
}

// display renders a value as canonical JSON for messages.
func display(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(ir.OrNull(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
