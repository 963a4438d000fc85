package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/briangreenhill/trackhub/internal/cache"
	"github.com/briangreenhill/trackhub/internal/config"
	"github.com/briangreenhill/trackhub/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	remote := cache.NewRedisStore(rdb, cfg.Cache.RemoteTimeout)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency:    8,
		StrictPriority: false,
		Queues: map[string]int{
			jobs.QueueInvalidate: 10, // higher priority
			"default":            5,  // default priority
		},
	})
	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskInvalidateRetry, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.InvalidateRetryPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			log.Printf("[asynq] bad payload: %v", err)
			return err
		}
		for _, prefix := range p.Prefixes {
			if err := remote.DeleteByPrefix(ctx, prefix); err != nil {
				// Returning the error lets asynq retry with backoff.
				log.Printf("[invalidate] retry failed prefix=%s: %v", prefix, err)
				return err
			}
			log.Printf("[invalidate] cleared prefix=%s", prefix)
		}
		return nil
	})

	log.Println("Worker running...")
	log.Fatal(srv.Run(mux))
}
