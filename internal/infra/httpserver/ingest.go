package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/minio/minio-go/v7/pkg/notification"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/infra/events"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
	"github.com/bryanwahyu/automaton-vision/internal/middleware"
)

// maxEventBytes caps webhook bodies; S3 event documents are small.
const maxEventBytes = 1 << 20

// NewIngestRouter exposes the pipeline to webhook deliveries of S3 event documents.
func NewIngestRouter(h events.Handler, opts Options) http.Handler {
	log := logger.OrNop(opts.Log)
	mux := chi.NewRouter()

	mux.Use(recoverer(log))
	mux.Use(middleware.LoggingMiddleware(log))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	if opts.Gatherer != nil {
		mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler(opts.Gatherer))
	}

	// POST /v1/events/uploads
	// Body: {"Records":[{"s3":{"bucket":{"name":"..."},"object":{"key":"..."}}}]}
	mux.Post("/v1/events/uploads", func(w http.ResponseWriter, req *http.Request) {
		var info notification.Info
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxEventBytes)).Decode(&info); err != nil {
			log.Warn("invalid upload event", zap.Error(err))
			respond(w, http.StatusBadRequest, errorBody{Error: "invalid event document"})
			return
		}
		batch, err := events.FromNotification(info)
		if err != nil {
			respond(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}

		// a batch runs to completion even if the sender gives up waiting
		res := h.Handle(context.WithoutCancel(req.Context()), batch)
		respond(w, res.StatusCode, res.Body)
	})

	return mux
}
