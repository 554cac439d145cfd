package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/directory"
	"homefoods-delivery/internal/geocode"
)

type quoteResponse struct {
	delivery.Resolution
	Serviceable bool `json:"serviceable"`
	Guessed     bool `json:"guessed"`
	Subtotal    int  `json:"subtotal"`
	Total       int  `json:"total"`
}

func newQuote(res delivery.Resolution, subtotal int) quoteResponse {
	return quoteResponse{
		Resolution:  res,
		Serviceable: res.Serviceable(),
		Guessed:     res.Guessed(),
		Subtotal:    subtotal,
		Total:       subtotal + res.DeliveryCharge,
	}
}

type detectResponse struct {
	quoteResponse
	DetectedState     string   `json:"detected_state,omitempty"`
	PossibleCityNames []string `json:"possible_city_names"`
}

type customCityRequest struct {
	City  string `json:"city"`
	State string `json:"state"`
}

type customCityResponse struct {
	City           string `json:"city"`
	State          string `json:"state"`
	DeliveryCharge int    `json:"delivery_charge"`
	DistanceMeters int    `json:"distance_meters,omitempty"`
	Estimated      bool   `json:"estimated"`
}

type checkoutRequest struct {
	City       string   `json:"city"`
	State      string   `json:"state"`
	Subtotal   int      `json:"subtotal"`
	ProductIDs []string `json:"product_ids"`
}

type checkoutError struct {
	Error       string   `json:"error"`
	Unavailable []string `json:"unavailable,omitempty"`
}

// Quote prices delivery to a city the customer picked from the list.
func (s *Server) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city, state := q.Get("city"), q.Get("state")
	if strings.TrimSpace(city) == "" || strings.TrimSpace(state) == "" {
		writeError(w, http.StatusBadRequest, "city and state are required")
		return
	}
	subtotal, err := subtotalParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	res := s.resolver.ResolveByExplicitCity(snap.Locations, city, state, subtotal, snap.FreeDelivery)
	s.log.Debug("quote", zap.String("city", city), zap.String("state", state),
		zap.String("confidence", string(res.Confidence)))
	writeJSON(w, http.StatusOK, newQuote(res, subtotal))
}

// Detect reverse geocodes the customer's coordinates and resolves the
// result against the location list.
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	lat, err := coordParam(r, "lat", 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lon, err := coordParam(r, "lon", 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	subtotal, err := subtotalParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	// Geocode and load the directory in parallel
	type geoRes struct {
		cand delivery.GeocodeCandidate
		err  error
	}
	type dirRes struct {
		snap directory.Snapshot
		err  error
	}
	chGeo := make(chan geoRes, 1)
	chDir := make(chan dirRes, 1)

	go func() {
		c, e := s.geo.Reverse(ctx, lat, lon)
		chGeo <- geoRes{cand: c, err: e}
	}()
	go func() {
		snap, e := directory.Load(ctx, s.store)
		chDir <- dirRes{snap: snap, err: e}
	}()

	var cand delivery.GeocodeCandidate
	var snap directory.Snapshot
	for i := 0; i < 2; i++ {
		select {
		case gr := <-chGeo:
			// Nothing at this coordinate resolves to nothing, not an error.
			if gr.err != nil && !errors.Is(gr.err, geocode.ErrNotFound) {
				s.fail(w, "reverse geocode", gr.err)
				return
			}
			cand = gr.cand
		case dr := <-chDir:
			if dr.err != nil {
				s.fail(w, "load directory", dr.err)
				return
			}
			snap = dr.snap
		case <-ctx.Done():
			writeError(w, http.StatusGatewayTimeout, "upstream timeout")
			return
		}
	}

	res := s.resolver.ResolveByGeocode(snap.Locations, cand, subtotal, snap.FreeDelivery)
	s.log.Debug("detect", zap.Strings("candidates", cand.PossibleCityNames),
		zap.String("detected_state", cand.DetectedState), zap.String("confidence", string(res.Confidence)))

	names := cand.PossibleCityNames
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, detectResponse{
		quoteResponse:     newQuote(res, subtotal),
		DetectedState:     cand.DetectedState,
		PossibleCityNames: names,
	})
}

// CustomCity estimates delivery to a city outside the location list from
// its distance to the kitchen.
func (s *Server) CustomCity(w http.ResponseWriter, r *http.Request) {
	var req customCityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.City) == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := customCityResponse{City: req.City, State: req.State, DeliveryCharge: delivery.FallbackCustomCharge}
	p, err := s.geo.Search(ctx, req.City, req.State)
	if err != nil {
		s.log.Warn("custom city lookup failed, using fallback charge",
			zap.String("city", req.City), zap.String("state", req.State), zap.Error(err))
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.DistanceMeters = s.origin.Distance(p)
	resp.DeliveryCharge = delivery.EstimateByDistance(s.tiers, resp.DistanceMeters)
	resp.Estimated = true
	writeJSON(w, http.StatusOK, resp)
}

// Checkout validates that an order can be delivered and prices it. It
// refuses unresolved cities and products not sold in the city.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.City) == "" || strings.TrimSpace(req.State) == "" {
		writeError(w, http.StatusBadRequest, "city and state are required")
		return
	}
	if req.Subtotal < 0 {
		writeError(w, http.StatusBadRequest, "subtotal must be non-negative")
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		s.fail(w, "load directory", err)
		return
	}
	res := s.resolver.ResolveByExplicitCity(snap.Locations, req.City, req.State, req.Subtotal, snap.FreeDelivery)
	if !res.Serviceable() {
		writeJSON(w, http.StatusUnprocessableEntity, checkoutError{Error: "delivery is not available to " + req.City})
		return
	}

	var unavailable []string
	for _, id := range req.ProductIDs {
		p, ok := catalog.FindByID(snap.Products, id)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown product "+id)
			return
		}
		if !delivery.AvailableIn(p, res.Location.Name) {
			unavailable = append(unavailable, id)
		}
	}
	if len(unavailable) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, checkoutError{
			Error:       "some products are not available in " + res.Location.Name,
			Unavailable: unavailable,
		})
		return
	}

	s.log.Info("checkout priced", zap.String("city", res.Location.Name),
		zap.Int("subtotal", req.Subtotal), zap.Int("delivery_charge", res.DeliveryCharge))
	writeJSON(w, http.StatusOK, newQuote(res, req.Subtotal))
}

// fail logs err and writes the matching status.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error(op+" failed", zap.Error(err))
	} else {
		s.log.Warn(op+" failed", zap.Error(err))
	}
	switch code {
	case http.StatusGatewayTimeout:
		writeError(w, code, "upstream timeout")
	case http.StatusBadGateway:
		writeError(w, code, "geocoder unavailable")
	case http.StatusInternalServerError:
		writeError(w, code, "internal error")
	default:
		writeError(w, code, err.Error())
	}
}
