package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, op Operation) (json.RawMessage, error) {
	return json.RawMessage(fmt.Sprintf(`{"id":%q}`, op.TargetID)), nil
}

func newCoordinator(t *testing.T, handler ItemHandler) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(handler, 4, time.Second, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func ops(ids ...string) []Operation {
	out := make([]Operation, len(ids))
	for i, id := range ids {
		out[i] = Operation{TargetID: id, Type: OpStatus, Payload: map[string]any{"status": "closed"}}
	}
	return out
}

func TestNewCoordinatorValidation(t *testing.T) {
	_, err := NewCoordinator(nil, 4, time.Second, zerolog.Nop())
	require.Error(t, err)
	_, err = NewCoordinator(echoHandler, 0, time.Second, zerolog.Nop())
	require.Error(t, err)
	_, err = NewCoordinator(echoHandler, 4, 0, zerolog.Nop())
	require.Error(t, err)
}

// One failing item never disturbs its siblings: with 3 operations where item
// 2 targets a nonexistent id, the batch reports {total:3, succeeded:2,
// failed:1} and the other items' results are intact.
func TestPartialFailureIsolated(t *testing.T) {
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		if op.TargetID == "missing" {
			return nil, errors.New("issue not found")
		}
		return echoHandler(ctx, op)
	}
	c := newCoordinator(t, handler)

	res, err := c.Execute(context.Background(), ops("1", "missing", "3"))
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Succeeded)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)

	require.True(t, res.Items[0].Success)
	require.JSONEq(t, `{"id":"1"}`, string(res.Items[0].Value))
	require.False(t, res.Items[1].Success)
	require.Equal(t, "missing", res.Items[1].TargetID)
	require.Contains(t, res.Items[1].Err, "not found")
	require.True(t, res.Items[2].Success)
}

// Results preserve input order even though completion order does not.
func TestResultOrderMatchesInput(t *testing.T) {
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		// Earlier items finish later.
		if op.TargetID == "a" {
			time.Sleep(50 * time.Millisecond)
		}
		return echoHandler(ctx, op)
	}
	c := newCoordinator(t, handler)

	res, err := c.Execute(context.Background(), ops("a", "b", "c", "d"))
	require.NoError(t, err)
	for i, want := range []string{"a", "b", "c", "d"} {
		require.Equal(t, want, res.Items[i].TargetID)
	}
}

func TestPanicCapturedAsFailure(t *testing.T) {
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		if op.TargetID == "boom" {
			panic("handler bug")
		}
		return echoHandler(ctx, op)
	}
	c := newCoordinator(t, handler)

	res, err := c.Execute(context.Background(), ops("1", "boom"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded)
	require.Equal(t, 1, res.Failed)
	require.Contains(t, res.Items[1].Err, "panic")
}

func TestInvalidItemsFailWithoutHandlerCall(t *testing.T) {
	var calls atomic.Int32
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		calls.Add(1)
		return echoHandler(ctx, op)
	}
	c := newCoordinator(t, handler)

	res, err := c.Execute(context.Background(), []Operation{
		{TargetID: "", Type: OpStatus},
		{TargetID: "1", Type: "archive"},
		{TargetID: "2", Type: OpTag},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Succeeded)
	require.Equal(t, 2, res.Failed)
	require.Contains(t, res.Items[0].Err, "target id")
	require.Contains(t, res.Items[1].Err, "archive")
	require.Equal(t, int32(1), calls.Load())
}

func TestPerItemTimeoutCountsAsFailure(t *testing.T) {
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		select {
		case <-time.After(time.Second):
			return echoHandler(ctx, op)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c, err := NewCoordinator(handler, 4, 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)

	res, err := c.Execute(context.Background(), ops("slow"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Contains(t, res.Items[0].Err, "deadline")
}

// Cancelling the batch stops in-flight items cooperatively; items that never
// started still appear in the result, so perItem length always equals total.
func TestCancellationCoversEveryItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c, err := NewCoordinator(handler, 1, time.Minute, zerolog.Nop())
	require.NoError(t, err)

	go func() {
		<-started
		cancel()
	}()

	const n = 6
	res, err := c.Execute(ctx, ops("1", "2", "3", "4", "5", "6"))
	require.NoError(t, err)
	require.Equal(t, n, res.Total)
	require.Len(t, res.Items, n)
	require.Equal(t, n, res.Failed)
	require.Equal(t, 0, res.Succeeded)
	for _, item := range res.Items {
		require.False(t, item.Success)
		require.NotEmpty(t, item.Err)
	}
}

func TestEmptyBatchRejected(t *testing.T) {
	c := newCoordinator(t, echoHandler)
	_, err := c.Execute(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestDispatchFailsOnDeadContext(t *testing.T) {
	c := newCoordinator(t, echoHandler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Execute(ctx, ops("1"))
	require.Error(t, err)
}

func TestInvariantSucceededPlusFailed(t *testing.T) {
	handler := func(ctx context.Context, op Operation) (json.RawMessage, error) {
		if len(op.TargetID)%2 == 0 {
			return nil, errors.New("even ids fail")
		}
		return echoHandler(ctx, op)
	}
	c := newCoordinator(t, handler)

	batch := ops("1", "22", "333", "4444", "55555")
	res, err := c.Execute(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, res.Total, res.Succeeded+res.Failed)
	require.Len(t, res.Items, len(batch))
}
