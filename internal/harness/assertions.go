package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/cartflow/internal/cart"
	"github.com/roach88/cartflow/internal/ir"
	"github.com/roach88/cartflow/internal/store"
)

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	Cart  *cart.Cart
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertField:
			err = assertField(actx.Cart, a)
		case AssertError:
			err = assertError(actx.Cart, a)
		case AssertFinalState:
			if a.Table != "" {
				err = assertTableState(actx.Ctx, actx.Store, a)
			} else {
				err = assertCartState(actx.Cart, a)
			}
		case AssertOrderCount:
			err = assertOrderCount(actx.Ctx, actx.Store, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func assertField(c *cart.Cart, a Assertion) error {
	expected, err := ir.FromGo(a.Value)
	if err != nil {
		return fmt.Errorf("invalid expected value for %s: %w", a.Field, err)
	}
	actual, ok := c.Get(a.Field)
	if !ok {
		return &AssertionError{Type: AssertField, Expected: fmt.Sprintf("field %s", a.Field), Actual: "no such field"}
	}
	if !ir.Equal(expected, actual) {
		return &AssertionError{
			Type:     AssertField,
			Expected: fmt.Sprintf("%s = %s", a.Field, display(expected)),
			Actual:   display(actual),
		}
	}
	return nil
}

func assertError(c *cart.Cart, a Assertion) error {
	var err error
	target := a.Field
	if target == "" {
		err = c.Err()
		target = "cart"
	} else {
		err = c.FieldErr(a.Field)
	}

	actual := ""
	if err != nil {
		actual = err.Error()
	}
	if actual != a.Message {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("%s failure %q", target, a.Message),
			Actual:   fmt.Sprintf("%q", actual),
		}
	}
	return nil
}

func assertCartState(c *cart.Cart, a Assertion) error {
	if actual := c.State().String(); actual != a.State {
		return &AssertionError{Type: AssertFinalState, Expected: "cart " + a.State, Actual: actual}
	}
	return nil
}

// assertTableState passes when some row matching where contains every
// key of expect.
func assertTableState(ctx context.Context, st *store.Store, a Assertion) error {
	where, err := toObject(a.Where)
	if err != nil {
		return fmt.Errorf("invalid where: %w", err)
	}
	expect, err := toObject(a.Expect)
	if err != nil {
		return fmt.Errorf("invalid expect: %w", err)
	}

	rows, err := st.Query(ctx, a.Table, where)
	if err != nil {
		return fmt.Errorf("query %s: %w", a.Table, err)
	}
	for _, row := range rows {
		if containsAll(row, expect) {
			return nil
		}
	}

	actual := make([]string, len(rows))
	for i, row := range rows {
		actual[i] = display(row)
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%s row where %s containing %s", a.Table, display(where), display(expect)),
		Actual:   fmt.Sprintf("%d rows [%s]", len(rows), strings.Join(actual, ", ")),
	}
}

func assertOrderCount(ctx context.Context, st *store.Store, a Assertion) error {
	n, err := st.Count(ctx, "orders", nil)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if n != a.Count {
		return &AssertionError{Type: AssertOrderCount, Expected: fmt.Sprintf("%d orders", a.Count), Actual: fmt.Sprintf("%d", n)}
	}
	return nil
}

func toObject(m map[string]any) (ir.IRObject, error) {
	obj := ir.IRObject{}
	for k, v := range m {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj[k] = iv
	}
	return obj, nil
}

func containsAll(row, expect ir.IRObject) bool {
	for k, want := range expect {
		got, ok := row[k]
		if !ok || !ir.Equal(want, got) {
			return false
		}
	}
	return true
}
