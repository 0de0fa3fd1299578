package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZero(t *testing.T) {
	assert.Zero(t, DistanceM(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestDistanceParisOffset(t *testing.T) {
	// Paris center to (48.8566, 3.0): roughly 47.4 km due east.
	d := DistanceM(48.8566, 2.3522, 48.8566, 3.0)
	assert.InDelta(t, 47395, d, 50)
}

func TestDistanceSymmetric(t *testing.T) {
	a := DistanceM(55.7558, 37.6173, 40.7128, -74.0060)
	b := DistanceM(40.7128, -74.0060, 55.7558, 37.6173)
	assert.InDelta(t, a, b, 1e-6)
	// Moscow to New York is about 7,500 km.
	assert.InDelta(t, 7_520_000, a, 100_000)
}

func TestPointsPerfect(t *testing.T) {
	require.Equal(t, 5000, Points(0))
}

func TestPointsKnownDistances(t *testing.T) {
	assert.Equal(t, 4990, Points(1000))  // one decay step
	assert.Equal(t, 4557, Points(47186)) // calibration point for the HP model
}

func TestPointsMonotone(t *testing.T) {
	prev := Points(0)
	for d := 1000.0; d <= 20_000_000; d *= 2 {
		p := Points(d)
		assert.LessOrEqual(t, p, prev, "points must not increase with distance (d=%f)", d)
		prev = p
	}
	assert.Zero(t, Points(math.Inf(1)))
}
