// Package delivery prices delivery for a customer's city and resolves
// geocoder output to a serviceable delivery location.
//
// Everything in this package is a pure function of its inputs: callers
// fetch locations, settings and geocoder candidates themselves and pass
// them in on every call.
package delivery

// Location is a serviceable city. (Name, State) pairs are expected to be
// unique under Normalize.
type Location struct {
	Name   string `json:"name" yaml:"name" bson:"name"`
	State  string `json:"state" yaml:"state" bson:"state"`
	Charge int    `json:"charge" yaml:"charge" bson:"charge"`
	// FreeDeliveryThreshold overrides the global threshold when set.
	FreeDeliveryThreshold *int `json:"free_delivery_threshold,omitempty" yaml:"free_delivery_threshold,omitempty" bson:"free_delivery_threshold,omitempty"`
}

// FreeDeliverySettings is the store-wide free delivery rule.
type FreeDeliverySettings struct {
	Enabled   bool `json:"enabled" yaml:"enabled" bson:"enabled"`
	Threshold int  `json:"threshold" yaml:"threshold" bson:"threshold"`
}

// GeocodeCandidate is what a reverse geocoder guessed for a coordinate.
// PossibleCityNames is in preference order.
type GeocodeCandidate struct {
	PossibleCityNames []string `json:"possible_city_names"`
	DetectedState     string   `json:"detected_state,omitempty"`
}

// Confidence says how directly a resolved city came from a true match.
type Confidence string

const (
	ConfidenceExact        Confidence = "exact"
	ConfidencePartial      Confidence = "partial"
	ConfidenceMajorCity    Confidence = "fallback-major-city"
	ConfidenceFirstInState Confidence = "fallback-first-in-state"
	ConfidenceUnresolved   Confidence = "unresolved"
)

// Resolution is the priced delivery decision.
type Resolution struct {
	Location             *Location  `json:"location,omitempty"`
	Confidence           Confidence `json:"confidence"`
	DeliveryCharge       int        `json:"delivery_charge"`
	FreeDeliveryApplied  bool       `json:"free_delivery_applied"`
	AmountToFreeDelivery int        `json:"amount_to_free_delivery,omitempty"`
}

// Serviceable reports whether a location was found. Orders must not be
// placed against an unserviceable resolution.
func (r Resolution) Serviceable() bool {
	return r.Confidence != ConfidenceUnresolved && r.Location != nil
}

// Guessed reports whether the location is anything but an exact match,
// in which case the customer should be asked to confirm it.
func (r Resolution) Guessed() bool {
	switch r.Confidence {
	case ConfidencePartial, ConfidenceMajorCity, ConfidenceFirstInState:
		return true
	}
	return false
}

func unresolved() Resolution {
	return Resolution{Confidence: ConfidenceUnresolved}
}

// IntPtr is a helper for building optional thresholds.
func IntPtr(v int) *int { return &v }
