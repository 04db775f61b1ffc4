// Package transform derives physical quantities from ECI state vectors:
// scalar speed and geodetic position over a spherical Earth.
//
// The geodetic conversion does not rotate through GMST. Instead it applies a
// time-of-day correction of 15 degrees per hour from a noon reference plus a
// fixed 32 degree alignment offset for the NASA ISS OEM feed.
package transform

import (
	"fmt"
	"math"

	"github.com/star/isstrack/internal/oem"
)

const (
	// MeanEarthRadiusKm is the spherical Earth radius used for altitude.
	MeanEarthRadiusKm = 6371.07103

	// LongitudeOffsetDeg aligns the rotated longitude with the feed's
	// reference epoch.
	LongitudeOffsetDeg = 32.0

	degreesPerHour = 360.0 / 24.0
)

// Geodetic holds a position relative to a spherical Earth.
type Geodetic struct {
	Latitude  float64 `json:"latitude"`  // degrees, [-90, 90]
	Longitude float64 `json:"longitude"` // degrees, [-180, 180]
	Altitude  float64 `json:"altitude"`  // km above MeanEarthRadiusKm
}

// ToGeodetic converts an ECI position (km) sampled at the given UTC hour and
// minute into latitude, longitude and altitude.
func ToGeodetic(pos oem.Vector3, hour, minute int) Geodetic {
	x, y, z := pos.X, pos.Y, pos.Z

	lat := degrees(math.Atan2(z, math.Sqrt(x*x+y*y)))

	rotation := (float64(hour-12) + float64(minute)/60) * degreesPerHour
	lon := degrees(math.Atan2(y, x)) - rotation + LongitudeOffsetDeg
	if lon < -180 {
		lon += 360
	} else if lon > 180 {
		lon -= 360
	}

	alt := math.Sqrt(x*x+y*y+z*z) - MeanEarthRadiusKm

	return Geodetic{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
	}
}

// FromStateVector converts a state vector using the hh and mm fields of its
// epoch. It fails only when those fields cannot be read.
func FromStateVector(sv oem.StateVector) (Geodetic, error) {
	hour, minute, err := oem.EpochClock(sv.Epoch)
	if err != nil {
		return Geodetic{}, fmt.Errorf("geodetic conversion: %w", err)
	}
	return ToGeodetic(sv.Position, hour, minute), nil
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
