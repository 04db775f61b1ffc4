package ephemeris

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no state vector carries the requested epoch.
	ErrNotFound = errors.New("epoch not found")

	// ErrEmptyDataset is returned by operations that need at least one
	// state vector, such as the nearest-epoch search.
	ErrEmptyDataset = errors.New("dataset has no state vectors")
)

// InvalidQueryParamError reports a limit or offset that is not a
// non-negative integer.
type InvalidQueryParamError struct {
	Param string
	Value string
}

func (e *InvalidQueryParamError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q: must be a non-negative integer", e.Param, e.Value)
}
