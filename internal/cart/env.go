package cart

import (
	"context"

	"github.com/roach88/cartflow/internal/config"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// AnonymousGroup is the customer group of carts without a logged-in actor.
const AnonymousGroup int64 = 999

// DefaultGroup is the group of logged-in actors that do not name one.
const DefaultGroup int64 = 1

// Actor is the identity the cart acts for. A zero ID is anonymous.
type Actor struct {
	ID       int64  `yaml:"id"`
	GroupID  int64  `yaml:"group_id"`
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
}

// LoggedIn reports whether the actor is authenticated.
func (a Actor) LoggedIn() bool { return a.ID > 0 }

// Client is request metadata of the caller.
type Client struct {
	IP        string `yaml:"ip"`
	UserAgent string `yaml:"user_agent"`
}

// Store is the persistence the cart reads: cart rows, the catalog and
// addresses. *store.Store implements it.
type Store interface {
	Load(ctx context.Context, table string, id int64) (ir.IRObject, bool, error)
	Product(ctx context.Context, id int64) (store.Product, bool, error)
	Address(ctx context.Context, id int64) (ir.IRObject, bool, error)
}

// ItemLoader supplies the persisted lines of a cart. *store.ItemSource
// implements it.
type ItemLoader interface {
	Items(ctx context.Context, cartID int64) (ir.IRArray, error)
}

// Env is the read-only context cart resolvers see.
type Env struct {
	Config *config.Config
	Actor  Actor
	Client Client

	ctx    context.Context
	store  Store
	loader ItemLoader
	items  *Collection
}

func (e *Env) address(id ir.IRValue) (bool, error) {
	n, ok := id.(ir.IRInt)
	if !ok || n <= 0 {
		return false, nil
	}
	_, found, err := e.store.Address(e.ctx, int64(n))
	return found, err
}

// ItemEnv is the read-only context line item resolvers see. It is shared
// by every line of one cart.
type ItemEnv struct {
	Config *config.Config

	ctx      context.Context
	store    Store
	products map[int64]store.Product
}

// product returns a catalog entry. Disabled products count as missing.
// Lookups are memoised for the life of the cart.
func (e *ItemEnv) product(id ir.IRValue) (store.Product, bool, error) {
	n, ok := id.(ir.IRInt)
	if !ok || n <= 0 {
		return store.Product{}, false, nil
	}
	if p, ok := e.products[int64(n)]; ok {
		return p, p.Status != 0, nil
	}
	p, found, err := e.store.Product(e.ctx, int64(n))
	if err != nil || !found {
		return store.Product{}, false, err
	}
	e.products[int64(n)] = p
	return p, p.Status != 0, nil
}
