package delivery

import "testing"

func TestHaversineMeters(t *testing.T) {
	// Distance from (0,0) to (0,1) ~ 111,319 meters
	d := HaversineMeters(0, 0, 0, 1)
	if d < 111000 || d > 111500 {
		t.Fatalf("unexpected distance: %d", d)
	}
	// Same point should be zero
	if z := HaversineMeters(10.5, 20.7, 10.5, 20.7); z != 0 {
		t.Fatalf("expected 0, got %d", z)
	}
	// Guntur to Vijayawada is roughly 30 km
	vja := Point{Lat: 16.5062, Lon: 80.6480}
	if d := DefaultOrigin.Distance(vja); d < 25000 || d > 35000 {
		t.Fatalf("unexpected Guntur-Vijayawada distance: %d", d)
	}
}

func TestEstimateByDistance(t *testing.T) {
	cases := []struct {
		meters int
		want   int
	}{
		{0, 49},
		{50_000, 49},
		{50_001, 99},
		{100_000, 99},
		{150_000, 149},
		{200_000, 149},
		{200_001, 199},
		{900_000, 199},
	}
	for _, c := range cases {
		if got := EstimateByDistance(DefaultDistanceTiers, c.meters); got != c.want {
			t.Fatalf("%d m: want %d, got %d", c.meters, c.want, got)
		}
	}
}

func TestEstimateByDistance_NoCoveringTier(t *testing.T) {
	tiers := []DistanceTier{{MaxMeters: 1000, Charge: 10}}
	if got := EstimateByDistance(tiers, 5000); got != FallbackCustomCharge {
		t.Fatalf("expected fallback charge, got %d", got)
	}
	if got := EstimateByDistance(nil, 0); got != FallbackCustomCharge {
		t.Fatalf("expected fallback charge for empty tiers, got %d", got)
	}
}
