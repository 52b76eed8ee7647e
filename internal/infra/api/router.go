package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apiv1 "portfolio-advisor/internal/infra/api/apiv1"
)

// NewRouter mounts the v1 API plus health and metrics behind the common
// middleware chain.
func NewRouter(v1 *apiv1.Server, requestTimeout time.Duration, log *zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	apiv1.RegisterAPIV1(r, v1)

	return Chain(r,
		TraceID(),
		Recover(log),
		RequestLog(log),
		CORS(),
		Timeout(requestTimeout),
	)
}
