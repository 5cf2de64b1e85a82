package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-vision/internal/logger"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	ImageID string `json:"image_id,omitempty"`
}

// respond writes body as JSON. Once the status line is out an encode failure
// means the client went away; it is dropped, nothing else can be sent.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recoverer turns a panic into the generic 500 body.
func recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("api error", zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.Stack("stack"))
					respond(w, http.StatusInternalServerError, errorBody{
						Error:   "Internal server error",
						Message: "Please try again later",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
