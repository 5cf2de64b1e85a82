package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// corsPolicy is the one CORS policy of the query API.
var corsPolicy = cors.Options{
	AllowedOrigins:     []string{"*"},
	AllowedMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	AllowedHeaders:     []string{"Content-Type", "X-Amz-Date", "Authorization", "X-Api-Key"},
	OptionsPassthrough: true,
}

// corsHeaders stamps the policy on every response, with or without an Origin
// header, so rejections written by middleware (429, panics, 404) carry it too.
// It runs inside cors.Handler and overrides the per-request preflight echo
// with the fixed lists.
func corsHeaders(opts cors.Options) func(http.Handler) http.Handler {
	origin := strings.Join(opts.AllowedOrigins, ",")
	methods := strings.Join(opts.AllowedMethods, ",")
	headers := strings.Join(opts.AllowedHeaders, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			next.ServeHTTP(w, r)
		})
	}
}
