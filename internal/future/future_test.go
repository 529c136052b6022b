package future

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvedAndReject(t *testing.T) {
	f := Resolved(42)
	assert.Equal(t, Fulfilled, f.State())
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	r := Reject[int](boom)
	assert.Equal(t, Rejected, r.State())
	_, err = r.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestDeferImmediate(t *testing.T) {
	calls := 0
	f := Defer(Immediate, func() (string, error) {
		calls++
		return "ok", nil
	})

	assert.True(t, f.Settled(), "immediate executor settles within Defer")
	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, calls)
}

func TestDeferQueue(t *testing.T) {
	q := NewQueue()
	calls := 0
	f := Defer(q, func() (int, error) {
		calls++
		return 7, nil
	})

	assert.Equal(t, Pending, f.State())
	assert.Equal(t, 1, q.Len())

	assert.Equal(t, 1, q.Drain())
	assert.Equal(t, Fulfilled, f.State())

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls, "work runs exactly once")
}

func TestWaitRunsPendingWorkInline(t *testing.T) {
	q := NewQueue()
	calls := 0
	f := Defer(q, func() (int, error) {
		calls++
		return 1, nil
	})

	v, err := f.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// the queued task is now a no-op
	q.Drain()
	assert.Equal(t, 1, calls)
}

func TestThen(t *testing.T) {
	q := NewQueue()
	base := Defer(q, func() (int, error) { return 20, nil })
	doubled := Then(base, func(v int) (int, error) { return v * 2, nil })

	assert.Equal(t, Pending, doubled.State())
	q.Drain()
	assert.Equal(t, Fulfilled, doubled.State(), "chained future settles with its source")

	v, err := doubled.Wait()
	require.NoError(t, err)
	assert.Equal(t, 40, v)
}

func TestThenPropagatesRejection(t *testing.T) {
	boom := errors.New("boom")
	called := false
	next := Then(Reject[int](boom), func(int) (string, error) {
		called = true
		return "", nil
	})

	_, err := next.Wait()
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestOnSettle(t *testing.T) {
	q := NewQueue()
	f := Defer(q, func() (int, error) { return 3, nil })

	var got []int
	f.OnSettle(func(v int, err error) { got = append(got, v) })
	assert.Empty(t, got)

	q.Drain()
	assert.Equal(t, []int{3}, got)

	f.OnSettle(func(v int, err error) { got = append(got, v*10) })
	assert.Equal(t, []int{3, 30}, got, "callbacks on settled futures run immediately")
}

func TestQueueDrainIncludesNestedSubmissions(t *testing.T) {
	q := NewQueue()
	var order []string
	q.Submit(func() {
		order = append(order, "a")
		q.Submit(func() { order = append(order, "c") })
	})
	q.Submit(func() { order = append(order, "b") })

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestQueueRun(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = q.Run(ctx)
	}()

	f := Defer(q, func() (int, error) { return 9, nil })
	v, err := f.WaitContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, v)

	q.Close()
	wg.Wait()
	assert.NoError(t, runErr)

	// submissions after close are dropped
	q.Submit(func() { t.Fatal("must not run") })
	assert.Equal(t, 0, q.Len())
}

func TestQueueRunCancelled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, q.Run(ctx), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "fulfilled", Fulfilled.String())
	assert.Equal(t, "rejected", Rejected.String())
}
