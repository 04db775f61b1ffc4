package transform

import (
	"math"

	"github.com/star/isstrack/internal/oem"
)

// Speed returns the magnitude of a velocity vector rounded to three decimal
// places. Units follow the input (km/s for OEM velocities).
func Speed(v oem.Vector3) float64 {
	x := math.Abs(v.X)
	y := math.Abs(v.Y)
	z := math.Abs(v.Z)
	return round3(math.Sqrt(x*x + y*y + z*z))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
