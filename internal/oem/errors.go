package oem

import "fmt"

// ParseError reports a feed payload that is missing a required element or
// carries one that cannot be decoded.
type ParseError struct {
	Index int    // state vector index, -1 for document-level problems
	Field string // element name
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parsing OEM document: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parsing OEM state vector %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports a failed retrieval of the upstream feed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching OEM feed from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
