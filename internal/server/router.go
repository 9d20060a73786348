// Package server exposes the cache engine over HTTP. The real event layer
// is an external collaborator; these endpoints are its three triggers plus
// session start, mapped one to one onto the engine facade.
package server

import (
	"net/http"
	"time"

	"github.com/GroundMC/GroundMCProfileCache/internal/services/engine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the chi router over the engine. gatherer may be nil to
// disable the metrics endpoint.
func NewRouter(service *engine.Service, log *zap.Logger, gatherer prometheus.Gatherer) chi.Router {
	if log == nil {
		log = zap.NewNop()
	}
	handlers := NewProfileHandlers(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/profiles", handlers.GetBatch)
		r.Get("/profiles/name/{username}", handlers.GetByName)
		r.Get("/profiles/id/{id}", handlers.GetByID)
		r.Post("/profiles", handlers.Record)
		r.Post("/sessions/{id}", handlers.SessionStart)
	})

	return r
}

// requestLogger logs each request with latency and status at debug level.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
