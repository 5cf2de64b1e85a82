package httpserver

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	appquery "github.com/bryanwahyu/automaton-vision/internal/application/query"
	domain "github.com/bryanwahyu/automaton-vision/internal/domain/images"
	"github.com/bryanwahyu/automaton-vision/internal/logger"
	"github.com/bryanwahyu/automaton-vision/internal/middleware"
)

// Options carries the operational wiring shared by both routers.
type Options struct {
	Log      *zap.Logger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Health   map[string]middleware.HealthChecker
	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64
	Burst     int
}

type Router struct {
	query *appquery.Service
	log   *zap.Logger
}

// NewRouter builds the read-only query API.
func NewRouter(svc *appquery.Service, opts Options) http.Handler {
	r := &Router{query: svc, log: logger.OrNop(opts.Log)}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(corsPolicy))
	mux.Use(corsHeaders(corsPolicy))
	mux.Use(recoverer(r.log))
	mux.Use(middleware.LoggingMiddleware(r.log))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	mux.Use(onlyGET)
	mux.Use(middleware.RateLimitMiddleware(opts.RateLimit, opts.Burst))

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	mux.MethodNotAllowed(methodNotAllowed)

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	if opts.Gatherer != nil {
		mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler(opts.Gatherer))
	}

	mux.Route("/api/v1/images", func(rt chi.Router) {
		rt.Get("/", r.wrap(r.handleList, "Failed to retrieve images"))
		// catch-all so ids holding an encoded '/' still reach handleGet
		rt.Get("/*", r.wrap(r.handleGet, "Failed to retrieve image"))
	})

	return mux
}

// onlyGET answers preflight requests and refuses every method the API does not serve.
func onlyGET(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodOptions:
			respond(w, http.StatusOK, map[string]string{"message": "CORS preflight"})
		case http.MethodGet:
			next.ServeHTTP(w, req)
		default:
			methodNotAllowed(w, req)
		}
	})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap logs handler errors and answers with a fixed message; details never reach the caller.
// Handlers return an error only before anything was written.
func (r *Router) wrap(h handlerFunc, failure string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			r.log.Error(failure, zap.String("path", req.URL.Path), zap.Error(err))
			respond(w, http.StatusInternalServerError, errorBody{Error: failure})
		}
	}
}

// GET /api/v1/images/{image_id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := imageID(req)
	notFound := errorBody{Error: "Image not found", ImageID: id}
	if err := middleware.ValidateImageID(id); err != nil {
		respond(w, http.StatusNotFound, notFound)
		return nil
	}

	res, err := r.query.Get(req.Context(), domain.ImageID(id))
	if errors.Is(err, domain.ErrNotFound) {
		respond(w, http.StatusNotFound, notFound)
		return nil
	}
	if err != nil {
		return err
	}
	respond(w, http.StatusOK, res)
	return nil
}

// imageID returns the decoded remainder of the path. chi matches on the raw
// path when the request carries escapes Go would not produce itself (%2F).
func imageID(req *http.Request) string {
	id := chi.URLParam(req, "*")
	if req.URL.RawPath == "" {
		return id
	}
	if dec, err := url.PathUnescape(id); err == nil {
		return dec
	}
	return id
}

// GET /api/v1/images?limit=20&last_key=&status=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	limit, err := middleware.ParseLimit(q.Get("limit"))
	if err != nil {
		return err
	}

	res, err := r.query.List(req.Context(), appquery.ListQuery{
		Limit:   limit,
		LastKey: middleware.SanitizeString(q.Get("last_key")),
		Status:  middleware.SanitizeString(q.Get("status")),
	})
	if err != nil {
		return err
	}
	respond(w, http.StatusOK, res)
	return nil
}
