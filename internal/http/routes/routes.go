// Package routes wires the HTTP surface: proxied reads with cache
// transparency headers, single-item mutations, and the bulk endpoint.
package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/trackhub/internal/bulk"
	"github.com/briangreenhill/trackhub/internal/cache"
	"github.com/briangreenhill/trackhub/internal/endpoint"
	"github.com/briangreenhill/trackhub/internal/invalidate"
	"github.com/briangreenhill/trackhub/internal/resolve"
	"github.com/briangreenhill/trackhub/internal/upstream"
)

// Cache transparency headers. Clients rely on these for debugging; the
// values are part of the observable contract.
const (
	HeaderCache       = "X-Cache"
	HeaderCacheTTL    = "X-Cache-TTL"
	HeaderCacheBypass = "X-Cache-Bypass"
)

type Server struct {
	Router   *chi.Mux
	Registry *endpoint.Registry
	Resolver *resolve.Resolver
	Cache    *cache.Facade
	Upstream upstream.Handler
	Inval    *invalidate.Manager
	Bulk     *bulk.Coordinator
	Log      zerolog.Logger
}

type ServerOptions struct {
	Registry *endpoint.Registry
	Resolver *resolve.Resolver
	Cache    *cache.Facade
	Upstream upstream.Handler
	Inval    *invalidate.Manager
	Log      zerolog.Logger

	BulkMaxInFlight int
	BulkItemTimeout time.Duration
}

func New(opts ServerOptions) (*Server, error) {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:   r,
		Registry: opts.Registry,
		Resolver: opts.Resolver,
		Cache:    opts.Cache,
		Upstream: opts.Upstream,
		Inval:    opts.Inval,
		Log:      opts.Log,
	}

	coord, err := bulk.NewCoordinator(s.executeItem, opts.BulkMaxInFlight, opts.BulkItemTimeout, opts.Log)
	if err != nil {
		return nil, err
	}
	s.Bulk = coord

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Printf("Error writing health check response: %v", err)
		}
	})

	r.Get("/api/{endpointID}", s.handleRead)
	r.Post("/api/bulk", s.handleBulk)
	r.Post("/api/{endpointID}", s.handleMutate)

	return s, nil
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	desc, err := s.Registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if desc.Method != endpoint.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "endpoint "+id+" is not a read")
		return
	}

	params := flattenQuery(r.URL.Query())
	rp, err := s.Resolver.Resolve(id, endpoint.SurfaceUpstream, params)
	if err != nil {
		writeError(w, resolveErrorStatus(err), err.Error())
		return
	}

	compute := func(ctx context.Context) ([]byte, error) {
		res, err := s.Upstream.Do(ctx, rp.Method, rp.Path, nil)
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	}

	if !desc.Cacheable() {
		body, err := compute(r.Context())
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeRaw(w, http.StatusOK, body)
		return
	}

	bypass := r.Header.Get(HeaderCacheBypass) == "1"
	key := desc.CacheKey(rp.Consumed)
	res, err := s.Cache.GetOrCompute(r.Context(), key, desc.TTL(), bypass, compute)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	w.Header().Set(HeaderCache, string(res.Status))
	w.Header().Set(HeaderCacheTTL, strconv.Itoa(int(res.TTL.Seconds())))
	writeRaw(w, http.StatusOK, res.Value)
}

func (s *Server) handleMutate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	desc, err := s.Registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if desc.Method == endpoint.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "endpoint "+id+" is not a mutation")
		return
	}

	params := flattenQuery(r.URL.Query())
	rp, err := s.Resolver.Resolve(id, endpoint.SurfaceUpstream, params)
	if err != nil {
		writeError(w, resolveErrorStatus(err), err.Error())
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	res, err := s.Upstream.Do(r.Context(), rp.Method, rp.Path, payload)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	if desc.Invalidates != nil {
		s.Inval.Invalidate(r.Context(), desc.Invalidates.Kind, rp.Consumed[desc.Invalidates.IDParam])
	}
	writeRaw(w, res.StatusCode, res.Body)
}

// flattenQuery keeps the first value per query key; the upstream API does not
// use repeated parameters.
func flattenQuery(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			params[k] = vs[0]
		}
	}
	return params
}

func resolveErrorStatus(err error) int {
	var unknownEndpoint *resolve.UnknownEndpointError
	var unknownSurface *resolve.UnknownSurfaceError
	switch {
	case errors.As(err, &unknownEndpoint):
		return http.StatusNotFound
	case errors.As(err, &unknownSurface):
		// A registered endpoint missing its upstream template is a
		// configuration bug, not a caller mistake.
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var ue *upstream.Error
	if errors.As(err, &ue) {
		switch ue.Kind {
		case upstream.KindNotFound:
			status = http.StatusNotFound
		case upstream.KindValidation:
			status = ue.StatusCode
			if status == 0 {
				status = http.StatusBadRequest
			}
		case upstream.KindServer, upstream.KindNetwork:
			status = http.StatusBadGateway
		}
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Printf("Error writing error response: %v", err)
	}
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("Error writing response body: %v", err)
	}
}
