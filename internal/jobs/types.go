// Package jobs defines the background task names and payloads shared by the
// api process (enqueue side) and the worker (processing side).
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TaskInvalidateRetry = "cache:invalidate_retry"

// QueueInvalidate is the asynq queue invalidation retries run on.
const QueueInvalidate = "invalidate"

// InvalidateRetryPayload carries the cache key prefixes whose remote deletion
// failed and should be retried.
type InvalidateRetryPayload struct {
	Prefixes []string `json:"prefixes"`
}

// NewInvalidateRetryTask builds the retry task for the given prefixes.
func NewInvalidateRetryTask(prefixes []string) (*asynq.Task, error) {
	payload, err := json.Marshal(InvalidateRetryPayload{Prefixes: prefixes})
	if err != nil {
		return nil, fmt.Errorf("marshal invalidate retry payload: %w", err)
	}
	return asynq.NewTask(TaskInvalidateRetry, payload), nil
}
