// internal/geo/geo.go
package geo

import "math"

const earthRadiusM = 6371000

// MaxPoints is the score for a perfect guess.
const MaxPoints = 5000

// decay calibrates the HP model: 5000 * 0.998036^km halves roughly every
// 350 km. Do not change without retuning HP damage.
const decay = 0.998036

// DistanceM returns the great-circle distance between two coordinates in
// meters using the haversine formula.
func DistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Points converts a guess distance in meters to a score in [0, MaxPoints].
// Monotonically decreasing; MaxPoints at zero distance.
func Points(distanceM float64) int {
	return int(math.Round(MaxPoints * math.Pow(decay, distanceM/1000)))
}
