package delivery

import "math"

// DistanceTier prices delivery up to MaxMeters from the kitchen.
// MaxMeters == 0 means the tier has no upper bound.
type DistanceTier struct {
	MaxMeters int `json:"max_meters" yaml:"max_meters"`
	Charge    int `json:"charge" yaml:"charge"`
}

// Point is a coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// FallbackCustomCharge is charged for a city whose distance is unknown.
const FallbackCustomCharge = 199

// DefaultOrigin is the kitchen in Guntur.
var DefaultOrigin = Point{Lat: 16.3067, Lon: 80.4365}

// DefaultDistanceTiers price cities outside the location list.
var DefaultDistanceTiers = []DistanceTier{
	{MaxMeters: 50_000, Charge: 49},
	{MaxMeters: 100_000, Charge: 99},
	{MaxMeters: 200_000, Charge: 149},
	{MaxMeters: 0, Charge: 199},
}

// EstimateByDistance returns the charge of the first tier covering
// meters. Bounds are inclusive. With no covering tier the fallback
// charge applies.
func EstimateByDistance(tiers []DistanceTier, meters int) int {
	t, ok := selectTier(tiers, meters)
	if !ok {
		return FallbackCustomCharge
	}
	return t.Charge
}

func selectTier(tiers []DistanceTier, meters int) (DistanceTier, bool) {
	for _, t := range tiers {
		if t.MaxMeters == 0 || meters <= t.MaxMeters {
			return t, true
		}
	}
	return DistanceTier{}, false
}

// HaversineMeters returns the great-circle distance in meters rounded to nearest int.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) int {
	const R = 6371000.0 // meters
	rad := func(d float64) float64 { return d * math.Pi / 180.0 }
	dlat := rad(lat2 - lat1)
	dlon := rad(lon2 - lon1)
	a := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return int(math.Round(R * c))
}

// Distance from p to q in meters.
func (p Point) Distance(q Point) int {
	return HaversineMeters(p.Lat, p.Lon, q.Lat, q.Lon)
}
