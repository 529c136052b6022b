// Package bus carries cart and order lifecycle notifications to
// collaborators.
//
// Handlers run synchronously on the publisher's goroutine, in subscription
// order. A panicking handler is logged and skipped; it never reaches the
// publisher.
package bus

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/cartflow/internal/ir"
)

// Name identifies an event kind.
type Name string

const (
	// CartUpdated is published after every cart sweep.
	CartUpdated Name = "cart_updated"
	// ItemAdded is published once an added line is confirmed present.
	ItemAdded Name = "cart_item_added"
	// ItemRemoved is published once a removed line is confirmed absent.
	ItemRemoved Name = "cart_item_removed"
	// ItemUpdated is published after a line's qty changes.
	ItemUpdated Name = "cart_item_updated"
	// OrderCreated is published after a successful commit.
	OrderCreated Name = "order_created"
)

// Event is one published notification.
type Event struct {
	Name    Name
	Seq     int64
	Session string
	CartID  int64
	ItemID  string
	OrderID int64

	// Data is an event-specific payload, e.g. the item snapshot.
	Data ir.IRObject
}

// Handler processes an event.
type Handler func(Event)

type subscription struct {
	id      string
	names   []Name
	handler Handler
}

// Bus is an in-process publish/subscribe hub.
//
// Thread Safety: Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for the given names, or for every event when
// no names are given. Returns a subscription ID for Unsubscribe.
func (b *Bus) Subscribe(handler Handler, names ...Name) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := subscription{id: uuid.NewString(), names: names, handler: handler}
	b.subs = append(b.subs, sub)
	return sub.id
}

// Unsubscribe removes a subscription. Returns false if id is unknown.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subs, func(s subscription) bool { return s.id == id })
	if i < 0 {
		return false
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	return true
}

// Publish delivers ev to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if len(sub.names) > 0 && !slices.Contains(sub.names, ev.Name) {
			continue
		}
		b.deliver(sub, ev)
	}
}

func (b *Bus) deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(ev.Name),
				"subscription", sub.id,
				"panic", r,
			)
		}
	}()
	sub.handler(ev)
}

// Recorder collects events, typically for tests and traces.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle implements Handler.
func (r *Recorder) Handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []Name {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Name, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name
	}
	return out
}
