package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"homefoods-delivery/internal/delivery"
)

// Client is the reverse/forward geocoding collaborator.
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (delivery.GeocodeCandidate, error)
	Search(ctx context.Context, city, state string) (delivery.Point, error)
}

var (
	// ErrNotFound means the geocoder had no result for the query.
	ErrNotFound = errors.New("geocode: no result")
)

// StatusError is a non-200 upstream response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s endpoint %d: %s", e.Endpoint, e.Code, e.Body)
}

type client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// Option configures the Nominatim client.
type Option func(*client)

// WithRate limits outgoing requests to rps with the given burst.
// rps <= 0 disables throttling.
func WithRate(rps float64, burst int) Option {
	return func(c *client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New returns a client for a Nominatim-compatible API. Requests are
// throttled to one per second unless WithRate says otherwise.
func New(baseURL, userAgent string, httpClient *http.Client, opts ...Option) Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	c := &client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Reverse(ctx context.Context, lat, lon float64) (delivery.GeocodeCandidate, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "10")
	q.Set("addressdetails", "1")

	var raw map[string]any
	if err := c.get(ctx, "reverse", q, &raw); err != nil {
		return delivery.GeocodeCandidate{}, err
	}
	if _, failed := raw["error"]; failed {
		return delivery.GeocodeCandidate{}, ErrNotFound
	}
	addr, _ := raw["address"].(map[string]any)
	if addr == nil {
		return delivery.GeocodeCandidate{}, ErrNotFound
	}
	return CandidateFromAddress(addr), nil
}

func (c *client) Search(ctx context.Context, city, state string) (delivery.Point, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s, %s, India", city, state))
	q.Set("format", "json")
	q.Set("limit", "1")

	var raw []any
	if err := c.get(ctx, "search", q, &raw); err != nil {
		return delivery.Point{}, err
	}
	if len(raw) == 0 {
		return delivery.Point{}, ErrNotFound
	}
	first, _ := raw[0].(map[string]any)
	lat, okLat := toF64(first["lat"])
	lon, okLon := toF64(first["lon"])
	if !okLat || !okLon {
		return delivery.Point{}, errors.New("incomplete search response")
	}
	return delivery.Point{Lat: lat, Lon: lon}, nil
}

func (c *client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	u := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept-Language", "en")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(b)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// cityFields are the address keys that may name a city, best first.
var cityFields = []string{
	"city",
	"town",
	"municipality",
	"county",
	"district",
	"city_district",
	"village",
	"suburb",
}

// CandidateFromAddress builds a candidate from a Nominatim address object.
// Empty values are dropped and repeated names kept only once.
func CandidateFromAddress(addr map[string]any) delivery.GeocodeCandidate {
	var cand delivery.GeocodeCandidate
	seen := make(map[string]struct{}, len(cityFields))
	for _, f := range cityFields {
		s, _ := addr[f].(string)
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := delivery.Normalize(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cand.PossibleCityNames = append(cand.PossibleCityNames, s)
	}
	state, _ := addr["state"].(string)
	cand.DetectedState = strings.TrimSpace(state)
	return cand
}

func toF64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		// Nominatim returns coordinates as strings.
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
