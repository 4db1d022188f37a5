package vendors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{"same point", 40.7128, -74.0060, 40.7128, -74.0060, 0, 0.001},
		{"new york to los angeles", 40.7128, -74.0060, 34.0522, -118.2437, 3936, 40},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 344, 5},
		{"one degree of latitude", 0, 0, 1, 0, 111.2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.tolerance)
		})
	}
}

func TestHaversineProperties(t *testing.T) {
	latGen := rapid.Float64Range(-90, 90)
	lonGen := rapid.Float64Range(-180, 180)

	rapid.Check(t, func(t *rapid.T) {
		lat1 := latGen.Draw(t, "lat1")
		lon1 := lonGen.Draw(t, "lon1")
		lat2 := latGen.Draw(t, "lat2")
		lon2 := lonGen.Draw(t, "lon2")

		forward := HaversineKm(lat1, lon1, lat2, lon2)
		backward := HaversineKm(lat2, lon2, lat1, lon1)

		if forward < 0 {
			t.Fatalf("negative distance %v", forward)
		}
		// Symmetric.
		if diff := forward - backward; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("asymmetric: %v vs %v", forward, backward)
		}
		// Bounded by half the Earth's circumference.
		if forward > 20038 {
			t.Fatalf("distance %v exceeds antipodal maximum", forward)
		}
	})
}
