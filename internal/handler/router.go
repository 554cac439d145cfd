package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// RouterOptions are the transport settings of NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	// Limiter is optional.
	Limiter *RateLimiter
}

// NewRouter mounts the API under /api/v1.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.Use(Recovery(s.log), RequestID, AccessLog(s.log))
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Middleware)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.Health).Methods(http.MethodGet)
	api.HandleFunc("/locations", s.Locations).Methods(http.MethodGet)
	api.HandleFunc("/states", s.States).Methods(http.MethodGet)
	api.HandleFunc("/settings/free-delivery", s.FreeDelivery).Methods(http.MethodGet)

	api.HandleFunc("/delivery/quote", s.Quote).Methods(http.MethodGet)
	api.HandleFunc("/delivery/detect", s.Detect).Methods(http.MethodGet)
	api.HandleFunc("/delivery/custom-city", s.CustomCity).Methods(http.MethodPost)
	api.HandleFunc("/checkout/delivery", s.Checkout).Methods(http.MethodPost)

	api.HandleFunc("/products", s.Products).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}/recommendations", s.Recommendations).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/locations", s.UpsertLocation).Methods(http.MethodPut)
	admin.HandleFunc("/locations/{state}/{city}", s.DeleteLocation).Methods(http.MethodDelete)
	admin.HandleFunc("/settings/free-delivery", s.SetFreeDelivery).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}/available-cities", s.SetAvailableCities).Methods(http.MethodPut)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	})
	return c.Handler(r)
}
