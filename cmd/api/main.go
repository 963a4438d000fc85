// cmd/api/main.go
package main

import (
	"log"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/trackhub/internal/cache"
	"github.com/briangreenhill/trackhub/internal/config"
	"github.com/briangreenhill/trackhub/internal/endpoint"
	"github.com/briangreenhill/trackhub/internal/http/routes"
	"github.com/briangreenhill/trackhub/internal/invalidate"
	"github.com/briangreenhill/trackhub/internal/resolve"
	"github.com/briangreenhill/trackhub/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Printf("starting api on %s", cfg.ListenAddr)

	// Endpoint registry: misconfiguration is fatal here, not on a request.
	reg, err := endpoint.Load(cfg.EndpointsFile)
	if err != nil {
		log.Fatalf("endpoint config error: %v", err)
	}

	// Cache tiers
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	remote := cache.NewRedisStore(rdb, cfg.Cache.RemoteTimeout)
	local := cache.NewLocalStore(cfg.Cache.LocalShards)
	facade := cache.New(remote, local, logger)

	// Upstream client
	up, err := upstream.New(cfg.Upstream.BaseURL,
		upstream.WithAPIKey(cfg.Upstream.APIKey),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
	)
	if err != nil {
		log.Fatalf("upstream error: %v", err)
	}

	// Invalidation with background retries through the worker
	enq := invalidate.NewAsynqEnqueuer(cfg.RedisAddr)
	defer func() { _ = enq.Close() }()
	inv := invalidate.New(facade, reg, enq, logger)

	s, err := routes.New(routes.ServerOptions{
		Registry: reg,
		Resolver: resolve.New(reg, logger),
		Cache:    facade,
		Upstream: up,
		Inval:    inv,
		Log:      logger,

		BulkMaxInFlight: cfg.Bulk.MaxInFlight,
		BulkItemTimeout: cfg.Bulk.ItemTimeout,
	})
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: h}
	log.Fatal(srv.ListenAndServe())
}
