// Package bulk fans a batch of independent mutations out to the upstream API
// and reports precise per-item outcomes instead of an all-or-nothing result.
package bulk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OperationType is the kind of mutation a bulk item performs.
type OperationType string

const (
	OpStatus OperationType = "status"
	OpAssign OperationType = "assign"
	OpTag    OperationType = "tag"
)

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	switch t {
	case OpStatus, OpAssign, OpTag:
		return true
	}
	return false
}

// Operation is one item in a batch. Consumed exactly once, never persisted.
type Operation struct {
	TargetID string
	Type     OperationType
	Payload  map[string]any
}

// ItemResult is the outcome of one operation. Exactly one of Value and Err is
// meaningful, selected by Success.
type ItemResult struct {
	TargetID string
	Success  bool
	Value    json.RawMessage
	Err      string
}

// Result is the aggregate outcome. Items preserves the input order so callers
// can correlate by index, and Succeeded+Failed == Total always holds.
type Result struct {
	BatchID   string
	Total     int
	Succeeded int
	Failed    int
	Items     []ItemResult
}

// ItemHandler executes a single operation. The handler owns the mutation's
// side effects, cache invalidation included, so bulk and single-item paths
// behave identically.
type ItemHandler func(ctx context.Context, op Operation) (json.RawMessage, error)

// ErrEmptyBatch is returned when Execute is called with no operations.
var ErrEmptyBatch = errors.New("bulk: empty batch")

// Coordinator dispatches batch items concurrently through a bounded worker
// pool. Each worker writes its own slot in the results slice, so no item's
// failure can touch a sibling's outcome.
type Coordinator struct {
	handler     ItemHandler
	maxInFlight int
	itemTimeout time.Duration
	log         zerolog.Logger
}

// NewCoordinator builds a coordinator. maxInFlight bounds concurrent upstream
// calls; itemTimeout bounds each item, with expiry counted as that item's
// failure.
func NewCoordinator(handler ItemHandler, maxInFlight int, itemTimeout time.Duration, log zerolog.Logger) (*Coordinator, error) {
	if handler == nil {
		return nil, errors.New("bulk: nil item handler")
	}
	if maxInFlight < 1 {
		return nil, fmt.Errorf("bulk: maxInFlight must be at least 1, got %d", maxInFlight)
	}
	if itemTimeout <= 0 {
		return nil, fmt.Errorf("bulk: itemTimeout must be positive, got %s", itemTimeout)
	}
	return &Coordinator{handler: handler, maxInFlight: maxInFlight, itemTimeout: itemTimeout, log: log}, nil
}

// Execute runs every operation and returns the aggregate result. Item-level
// failures are captured in the result; only a batch that cannot be dispatched
// at all returns an error. When ctx is cancelled mid-batch, in-flight items
// are cancelled cooperatively and not-yet-started items are recorded as
// failed, so the result still covers every input.
func (c *Coordinator) Execute(ctx context.Context, ops []Operation) (*Result, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("bulk: dispatch: %w", err)
	}

	batchID := uuid.NewString()
	start := time.Now()
	items := make([]ItemResult, len(ops))
	sem := make(chan struct{}, c.maxInFlight)
	var wg sync.WaitGroup

	for i := range ops {
		select {
		case <-ctx.Done():
			items[i] = ItemResult{TargetID: ops[i].TargetID, Err: "cancelled: " + ctx.Err().Error()}
			continue
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int, op Operation) {
			defer wg.Done()
			defer func() { <-sem }()
			items[i] = c.runOne(ctx, op)
		}(i, ops[i])
	}
	wg.Wait()

	res := &Result{BatchID: batchID, Total: len(ops), Items: items}
	for _, item := range items {
		if item.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	c.log.Info().
		Str("batch", batchID).
		Int("total", res.Total).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("bulk batch done")
	return res, nil
}

func (c *Coordinator) runOne(ctx context.Context, op Operation) (res ItemResult) {
	res.TargetID = op.TargetID
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Value = nil
			res.Err = fmt.Sprintf("handler panic: %v", p)
		}
	}()

	if op.TargetID == "" {
		res.Err = "missing target id"
		return res
	}
	if !op.Type.Valid() {
		res.Err = fmt.Sprintf("unknown operation type %q", op.Type)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, c.itemTimeout)
	defer cancel()

	value, err := c.handler(ctx, op)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Success = true
	res.Value = value
	return res
}
