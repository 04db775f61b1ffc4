package ephemeris

import (
	"fmt"
	"math"
	"time"

	"github.com/star/isstrack/internal/oem"
)

// Nearest returns the state vector whose epoch is closest to now and the
// absolute distance in seconds. Ties go to the earlier entry in dataset order.
// Linear scan: a feed holds a few thousand samples at most.
func Nearest(ds *oem.Dataset, now time.Time) (oem.StateVector, float64, error) {
	if len(ds.StateVectors) == 0 {
		return oem.StateVector{}, 0, ErrEmptyDataset
	}

	best := -1
	bestDelta := math.Inf(1)
	for i, sv := range ds.StateVectors {
		t, err := oem.ParseEpoch(sv.Epoch)
		if err != nil {
			continue
		}
		delta := math.Abs(now.Sub(t).Seconds())
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}

	if best < 0 {
		return oem.StateVector{}, 0, fmt.Errorf("%w: no state vector has a readable epoch", ErrEmptyDataset)
	}
	return ds.StateVectors[best], bestDelta, nil
}
