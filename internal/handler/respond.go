package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"homefoods-delivery/internal/directory"
	"homefoods-delivery/internal/geocode"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a collaborator error to an HTTP status.
func statusFor(err error) int {
	var se *geocode.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrInvalidLocation), errors.Is(err, directory.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.As(err, &se), errors.Is(err, geocode.ErrNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// subtotalParam parses a non-negative integer subtotal. Missing means 0.
func subtotalParam(r *http.Request) (int, error) {
	s := r.URL.Query().Get("subtotal")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("subtotal must be a non-negative integer")
	}
	return n, nil
}

func coordParam(r *http.Request, name string, limit float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(s, 64)
	// NaN fails every comparison, so reject it explicitly.
	if err != nil || math.IsNaN(f) || f < -limit || f > limit {
		return 0, fmt.Errorf("%s must be between -%g and %g", name, limit, limit)
	}
	return f, nil
}
