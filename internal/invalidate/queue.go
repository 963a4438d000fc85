package invalidate

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/trackhub/internal/jobs"
)

// AsynqEnqueuer hands failed invalidations to the worker via asynq.
type AsynqEnqueuer struct {
	client *asynq.Client
}

// NewAsynqEnqueuer connects to redis at addr. Note the retry queue shares the
// redis instance with the remote cache tier; if redis is down the enqueue
// fails too, which the manager logs and drops; the entries age out by TTL.
func NewAsynqEnqueuer(redisAddr string) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// EnqueueRetry implements Enqueuer.
func (e *AsynqEnqueuer) EnqueueRetry(ctx context.Context, prefixes []string) error {
	task, err := jobs.NewInvalidateRetryTask(prefixes)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueInvalidate), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue invalidation retry: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection.
func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}
