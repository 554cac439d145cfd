package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
)

const defaultRecommendations = 4

type recommendationsResponse struct {
	Seed     int64                   `json:"seed"`
	Products []catalog.PricedProduct `json:"products"`
}

// Products lists the catalog with discounts applied, restricted to the
// products sold in ?city when given.
func (s *Server) Products(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	products := snap.Products
	if city := r.URL.Query().Get("city"); city != "" {
		products = delivery.FilterProductsByCity(products, city)
	}
	writeJSON(w, http.StatusOK, catalog.PriceAll(products, s.now()))
}

// Recommendations suggests other products sold in ?city. The order is
// fixed by ?seed; without one a seed is picked and echoed back.
func (s *Server) Recommendations(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	limit := defaultRecommendations
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	seed := s.now().UnixNano()
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "seed must be an integer")
			return
		}
		seed = n
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	if _, ok := catalog.FindByID(snap.Products, id); !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	products := snap.Products
	if city := q.Get("city"); city != "" {
		products = delivery.FilterProductsByCity(products, city)
	}
	picked := catalog.Recommend(products, id, limit, seed)
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Seed:     seed,
		Products: catalog.PriceAll(picked, s.now()),
	})
}
