package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// EndpointOptions carries the cross-cutting settings every endpoint shares.
type EndpointOptions struct {
	RaiseOnFault bool
	Logger       *slog.Logger
}

// NewRouter builds the HTTP router. The get-token endpoint and a liveness
// probe are always mounted; additional endpoints mount under their given
// path patterns.
func NewRouter(getToken http.Handler, extra map[string]http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	r.Handle("/get_token", getToken)

	for pattern, handler := range extra {
		r.Handle(pattern, handler)
	}

	return r
}
