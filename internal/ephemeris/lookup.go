package ephemeris

import (
	"fmt"
	"strconv"

	"github.com/star/isstrack/internal/oem"
)

// Find returns the first state vector in dataset order whose epoch equals key.
func Find(ds *oem.Dataset, key string) (oem.StateVector, error) {
	for _, sv := range ds.StateVectors {
		if sv.Epoch == key {
			return sv, nil
		}
	}
	return oem.StateVector{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}

// Window selects a contiguous run of epochs.
type Window struct {
	Limit  int
	Offset int
}

// ParseWindow parses raw limit and offset query values. An empty value takes
// the default: offset 0 and a limit covering all n samples.
func ParseWindow(limit, offset string, n int) (Window, error) {
	w := Window{Limit: n}

	if limit != "" {
		v, err := parseCount(limit)
		if err != nil {
			return Window{}, &InvalidQueryParamError{Param: "limit", Value: limit}
		}
		w.Limit = v
	}
	if offset != "" {
		v, err := parseCount(offset)
		if err != nil {
			return Window{}, &InvalidQueryParamError{Param: "offset", Value: offset}
		}
		w.Offset = v
	}
	return w, nil
}

func parseCount(s string) (int, error) {
	v, err := strconv.ParseUint(s, 10, strconv.IntSize-1)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// EpochWindow returns the epochs selected by w, clamped to the dataset.
// The result has min(Limit, max(0, N-Offset)) entries and is never nil.
func EpochWindow(ds *oem.Dataset, w Window) []string {
	n := len(ds.StateVectors)
	if w.Offset >= n || w.Limit <= 0 {
		return []string{}
	}
	count := min(w.Limit, n-w.Offset)

	epochs := make([]string, count)
	for i := range count {
		epochs[i] = ds.StateVectors[w.Offset+i].Epoch
	}
	return epochs
}
