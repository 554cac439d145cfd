package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"homefoods-delivery/internal/delivery"
)

type availableCitiesRequest struct {
	Cities []string `json:"cities"`
}

// Health answers liveness probes.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Locations lists the serviceable cities.
func (s *Server) Locations(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	locs := snap.Locations
	if locs == nil {
		locs = []delivery.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

// States lists the distinct states of the serviceable cities.
func (s *Server) States(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	states := snap.States()
	if states == nil {
		states = []string{}
	}
	writeJSON(w, http.StatusOK, states)
}

// FreeDelivery returns the store-wide free delivery settings.
func (s *Server) FreeDelivery(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	writeJSON(w, http.StatusOK, snap.FreeDelivery)
}

// UpsertLocation adds a city or replaces the one with the same name and
// state.
func (s *Server) UpsertLocation(w http.ResponseWriter, r *http.Request) {
	var loc delivery.Location
	if err := decodeJSON(w, r, &loc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpsertLocation(r.Context(), loc); err != nil {
		s.fail(w, "upsert location", err)
		return
	}
	s.log.Info("location saved", zap.String("city", loc.Name), zap.String("state", loc.State), zap.Int("charge", loc.Charge))
	writeJSON(w, http.StatusOK, loc)
}

// DeleteLocation removes a city. The default cities are seeded only once,
// so deleting the last city leaves the directory empty and every lookup
// unresolved until a city is added again.
func (s *Server) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	state, city := vars["state"], vars["city"]
	if err := s.store.DeleteLocation(r.Context(), state, city); err != nil {
		s.fail(w, "delete location", err)
		return
	}
	s.log.Info("location deleted", zap.String("city", city), zap.String("state", state))
	w.WriteHeader(http.StatusNoContent)
}

// SetFreeDelivery replaces the store-wide free delivery settings.
func (s *Server) SetFreeDelivery(w http.ResponseWriter, r *http.Request) {
	var fd delivery.FreeDeliverySettings
	if err := decodeJSON(w, r, &fd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetFreeDelivery(r.Context(), fd); err != nil {
		s.fail(w, "save free delivery settings", err)
		return
	}
	s.log.Info("free delivery settings saved", zap.Bool("enabled", fd.Enabled), zap.Int("threshold", fd.Threshold))
	writeJSON(w, http.StatusOK, fd)
}

// SetAvailableCities restricts a product to a list of cities. An empty
// list makes it available everywhere.
func (s *Server) SetAvailableCities(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req availableCitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetAvailableCities(r.Context(), id, req.Cities); err != nil {
		s.fail(w, "set available cities", err)
		return
	}
	s.log.Info("product cities saved", zap.String("product", id), zap.Strings("cities", req.Cities))
	writeJSON(w, http.StatusOK, req)
}
