package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefoods-delivery/internal/catalog"
	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/directory"
	"homefoods-delivery/internal/geocode"
)

// fake geocoder for tests
type fakeGeo struct {
	cand     delivery.GeocodeCandidate
	point    delivery.Point
	err      error
	searchOK bool
	block    bool
}

func (f *fakeGeo) Reverse(ctx context.Context, lat, lon float64) (delivery.GeocodeCandidate, error) {
	if f.block {
		<-ctx.Done()
		return delivery.GeocodeCandidate{}, ctx.Err()
	}
	return f.cand, f.err
}

func (f *fakeGeo) Search(ctx context.Context, city, state string) (delivery.Point, error) {
	if !f.searchOK {
		return delivery.Point{}, geocode.ErrNotFound
	}
	return f.point, nil
}

// memStore is an in-memory directory.Store.
type memStore struct {
	mu        sync.Mutex
	locations []delivery.Location
	fd        delivery.FreeDeliverySettings
	products  []catalog.Product
	err       error
}

func (m *memStore) Locations(context.Context) ([]delivery.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery.Location(nil), m.locations...), m.err
}

func (m *memStore) FreeDelivery(context.Context) (delivery.FreeDeliverySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fd, m.err
}

func (m *memStore) Products(context.Context) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.Product(nil), m.products...), m.err
}

func (m *memStore) UpsertLocation(_ context.Context, loc delivery.Location) error {
	if err := directory.ValidateLocation(loc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.locations {
		if delivery.SameName(l.Name, loc.Name) && delivery.SameName(l.State, loc.State) {
			m.locations[i] = loc
			return nil
		}
	}
	m.locations = append(m.locations, loc)
	return nil
}

func (m *memStore) DeleteLocation(_ context.Context, state, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.locations {
		if delivery.SameName(l.Name, name) && delivery.SameName(l.State, state) {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return directory.ErrNotFound
}

func (m *memStore) SetFreeDelivery(_ context.Context, fd delivery.FreeDeliverySettings) error {
	if err := directory.ValidateSettings(fd); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fd = fd
	return nil
}

func (m *memStore) SetAvailableCities(_ context.Context, id string, cities []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products[i].AvailableCities = cities
			return nil
		}
	}
	return directory.ErrNotFound
}

var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newStore() *memStore {
	return &memStore{
		locations: []delivery.Location{
			{Name: "Guntur", State: "Andhra Pradesh", Charge: 49},
			{Name: "Vijayawada", State: "Andhra Pradesh", Charge: 79, FreeDeliveryThreshold: delivery.IntPtr(500)},
			{Name: "Hyderabad", State: "Telangana", Charge: 129},
		},
		fd: delivery.FreeDeliverySettings{Enabled: true, Threshold: 1000},
		products: []catalog.Product{
			{ID: "avakaya", Name: "Avakaya", Prices: []catalog.PriceOption{{Weight: "250g", Price: 20000}},
				AvailableCities: []string{"Guntur", "Hyderabad"},
				Discount:        &catalog.Discount{Percentage: 10, ExpiresAt: testNow.Add(time.Hour)}},
			{ID: "ariselu", Name: "Ariselu", Prices: []catalog.PriceOption{{Weight: "500g", Price: 30000}}},
			{ID: "gongura", Name: "Gongura", Prices: []catalog.PriceOption{{Weight: "250g", Price: 18000}},
				AvailableCities: []string{"Hyderabad"}},
		},
	}
}

func newTestRouter(store directory.Store, geo geocode.Client, opts ...Option) http.Handler {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewRouter(NewServer(store, geo, opts...), RouterOptions{})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type quoteBody struct {
	Location *struct {
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"location"`
	Confidence           string   `json:"confidence"`
	DeliveryCharge       int      `json:"delivery_charge"`
	FreeDeliveryApplied  bool     `json:"free_delivery_applied"`
	AmountToFreeDelivery int      `json:"amount_to_free_delivery"`
	Serviceable          bool     `json:"serviceable"`
	Guessed              bool     `json:"guessed"`
	Subtotal             int      `json:"subtotal"`
	Total                int      `json:"total"`
	DetectedState        string   `json:"detected_state"`
	PossibleCityNames    []string `json:"possible_city_names"`
	Error                string   `json:"error"`
	Unavailable          []string `json:"unavailable"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) quoteBody {
	t.Helper()
	var got quoteBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got), rr.Body.String())
	return got
}

func TestQuote(t *testing.T) {
	h := newTestRouter(newStore(), &fakeGeo{})

	rr := do(t, h, http.MethodGet, "/api/v1/delivery/quote?city=guntur&state=ANDHRA%20PRADESH&subtotal=400", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode(t, rr)
	assert.Equal(t, "exact", got.Confidence)
	assert.Equal(t, "Guntur", got.Location.Name)
	assert.Equal(t, 49, got.DeliveryCharge)
	assert.Equal(t, 600, got.AmountToFreeDelivery)
	assert.Equal(t, 449, got.Total)
	assert.True(t, got.Serviceable)
	assert.False(t, got.Guessed)

	// City threshold overrides the global one.
	got = decode(t, do(t, h, http.MethodGet, "/api/v1/delivery/quote?city=Vijayawada&state=Andhra%20Pradesh&subtotal=500", ""))
	assert.True(t, got.FreeDeliveryApplied)
	assert.Equal(t, 0, got.DeliveryCharge)
	assert.Equal(t, 500, got.Total)

	// Unknown city is reported, not rejected.
	rr = do(t, h, http.MethodGet, "/api/v1/delivery/quote?city=Ongole&state=Andhra%20Pradesh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got = decode(t, rr)
	assert.Equal(t, "unresolved", got.Confidence)
	assert.False(t, got.Serviceable)
	assert.Nil(t, got.Location)
}

func TestQuote_Validation(t *testing.T) {
	h := newTestRouter(newStore(), &fakeGeo{})
	for _, target := range []string{
		"/api/v1/delivery/quote",
		"/api/v1/delivery/quote?city=Guntur",
		"/api/v1/delivery/quote?city=Guntur&state=AP&subtotal=-1",
		"/api/v1/delivery/quote?city=Guntur&state=AP&subtotal=ten",
	} {
		rr := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.NotEmpty(t, decode(t, rr).Error)
	}
}

func TestQuote_StoreFailure(t *testing.T) {
	store := newStore()
	store.err = errors.New("connection refused")
	rr := do(t, newTestRouter(store, &fakeGeo{}), http.MethodGet, "/api/v1/delivery/quote?city=Guntur&state=AP", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error", decode(t, rr).Error)
}

func TestDetect(t *testing.T) {
	geo := &fakeGeo{cand: delivery.GeocodeCandidate{
		PossibleCityNames: []string{"Guntur East", "Guntur"},
		DetectedState:     "Andhra Pradesh",
	}}
	h := newTestRouter(newStore(), geo)

	rr := do(t, h, http.MethodGet, "/api/v1/delivery/detect?lat=16.3&lon=80.4&subtotal=1200", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode(t, rr)
	assert.Equal(t, "exact", got.Confidence)
	assert.Equal(t, "Guntur", got.Location.Name)
	assert.True(t, got.FreeDeliveryApplied)
	assert.Equal(t, "Andhra Pradesh", got.DetectedState)
	assert.Equal(t, []string{"Guntur East", "Guntur"}, got.PossibleCityNames)
}

func TestDetect_Fallbacks(t *testing.T) {
	t.Run("major city in detected state is a guess", func(t *testing.T) {
		geo := &fakeGeo{cand: delivery.GeocodeCandidate{PossibleCityNames: []string{"Mangalagiri"}, DetectedState: "Andhra Pradesh"}}
		got := decode(t, do(t, newTestRouter(newStore(), geo), http.MethodGet, "/api/v1/delivery/detect?lat=16.4&lon=80.5", ""))
		assert.Equal(t, "fallback-major-city", got.Confidence)
		assert.Equal(t, "Guntur", got.Location.Name)
		assert.True(t, got.Guessed)
	})

	t.Run("nothing at the coordinate", func(t *testing.T) {
		geo := &fakeGeo{err: geocode.ErrNotFound}
		rr := do(t, newTestRouter(newStore(), geo), http.MethodGet, "/api/v1/delivery/detect?lat=0&lon=0", "")
		require.Equal(t, http.StatusOK, rr.Code)
		got := decode(t, rr)
		assert.Equal(t, "unresolved", got.Confidence)
		assert.Equal(t, []string{}, got.PossibleCityNames)
	})
}

func TestDetect_UpstreamErrors(t *testing.T) {
	geo := &fakeGeo{err: &geocode.StatusError{Endpoint: "reverse", Code: 503}}
	rr := do(t, newTestRouter(newStore(), geo), http.MethodGet, "/api/v1/delivery/detect?lat=16.3&lon=80.4", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	slow := &fakeGeo{block: true}
	rr = do(t, newTestRouter(newStore(), slow, WithTimeout(20*time.Millisecond)), http.MethodGet, "/api/v1/delivery/detect?lat=16.3&lon=80.4", "")
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
}

func TestDetect_Validation(t *testing.T) {
	// A blocking geocoder turns any request that slips past validation
	// into a 504.
	h := newTestRouter(newStore(), &fakeGeo{block: true}, WithTimeout(20*time.Millisecond))
	for _, target := range []string{
		"/api/v1/delivery/detect?lon=80",
		"/api/v1/delivery/detect?lat=91&lon=80",
		"/api/v1/delivery/detect?lat=16&lon=181",
		"/api/v1/delivery/detect?lat=16&lon=x",
		"/api/v1/delivery/detect?lat=NaN&lon=80",
		"/api/v1/delivery/detect?lat=16&lon=nan",
		"/api/v1/delivery/detect?lat=-Inf&lon=80",
	} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, target, "").Code, target)
	}
}

func TestCustomCity(t *testing.T) {
	type body struct {
		DeliveryCharge int  `json:"delivery_charge"`
		DistanceMeters int  `json:"distance_meters"`
		Estimated      bool `json:"estimated"`
	}

	// Ongole is roughly 95 km from Guntur.
	geo := &fakeGeo{searchOK: true, point: delivery.Point{Lat: 15.5057, Lon: 80.0499}}
	rr := do(t, newTestRouter(newStore(), geo), http.MethodPost, "/api/v1/delivery/custom-city", `{"city":"Ongole","state":"Andhra Pradesh"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got body
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.True(t, got.Estimated)
	assert.Equal(t, 99, got.DeliveryCharge)
	assert.InDelta(t, 95000, got.DistanceMeters, 10000)

	// Lookup failure falls back to the flat charge.
	rr = do(t, newTestRouter(newStore(), &fakeGeo{}), http.MethodPost, "/api/v1/delivery/custom-city", `{"city":"Nowhere","state":"Andhra Pradesh"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got = body{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.False(t, got.Estimated)
	assert.Equal(t, delivery.FallbackCustomCharge, got.DeliveryCharge)

	rr = do(t, newTestRouter(newStore(), &fakeGeo{}), http.MethodPost, "/api/v1/delivery/custom-city", `{"state":"Andhra Pradesh"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckout(t *testing.T) {
	h := newTestRouter(newStore(), &fakeGeo{})

	rr := do(t, h, http.MethodPost, "/api/v1/checkout/delivery",
		`{"city":"Hyderabad","state":"Telangana","subtotal":900,"product_ids":["avakaya","gongura","ariselu"]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode(t, rr)
	assert.Equal(t, 129, got.DeliveryCharge)
	assert.Equal(t, 1029, got.Total)

	// Unresolved cities cannot be ordered to.
	rr = do(t, h, http.MethodPost, "/api/v1/checkout/delivery",
		`{"city":"Chennai","state":"Tamil Nadu","subtotal":900,"product_ids":["ariselu"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/delivery",
		`{"city":"Guntur","state":"Andhra Pradesh","subtotal":900,"product_ids":["avakaya","gongura"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, []string{"gongura"}, decode(t, rr).Unavailable)

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/delivery",
		`{"city":"Guntur","state":"Andhra Pradesh","subtotal":900,"product_ids":["missing"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/v1/checkout/delivery", `{"city":"Guntur","state":"Andhra Pradesh","coupon":"X"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
