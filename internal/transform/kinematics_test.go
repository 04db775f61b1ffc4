package transform

import (
	"testing"

	"github.com/star/isstrack/internal/oem"
)

func TestSpeed(t *testing.T) {
	tests := []struct {
		name string
		v    oem.Vector3
		want float64
	}{
		{"3-4-5", oem.Vector3{X: 3.0, Y: -4.0, Z: 0.0}, 5.000},
		{"zero", oem.Vector3{}, 0},
		{"all negative", oem.Vector3{X: -3.0, Y: -4.0, Z: 0.0}, 5.000},
		{"rounded to 3 places", oem.Vector3{X: 4.153, Y: -5.862, Z: 3.481}, 7.983},
		{"rounded to 3 places 2", oem.Vector3{X: 5.418, Y: -5.713, Z: 0.987}, 7.935},
		{"unit diagonal", oem.Vector3{X: 1, Y: 1, Z: 1}, 1.732},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Speed(tt.v)
			if got != tt.want {
				t.Errorf("Speed(%+v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestSpeedSignInvariantAndDeterministic(t *testing.T) {
	base := oem.Vector3{X: 1.234, Y: 5.678, Z: 9.1011}
	want := Speed(base)
	if want < 0 {
		t.Fatalf("Speed returned negative value %v", want)
	}

	for _, sx := range []float64{1, -1} {
		for _, sy := range []float64{1, -1} {
			for _, sz := range []float64{1, -1} {
				v := oem.Vector3{X: sx * base.X, Y: sy * base.Y, Z: sz * base.Z}
				for i := 0; i < 3; i++ {
					if got := Speed(v); got != want {
						t.Errorf("Speed(%+v) = %v, want %v", v, got, want)
					}
				}
			}
		}
	}
}
