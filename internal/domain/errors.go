package domain

import "fmt"

// InvalidRangeError reports period bounds that cannot form a range.
// It is a caller error and is never retried.
type InvalidRangeError struct {
	StartYear, StartMonth int
	EndYear, EndMonth     int
	Reason                string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid period range %04d-%02d..%04d-%02d: %s",
		e.StartYear, e.StartMonth, e.EndYear, e.EndMonth, e.Reason)
}

// RetrievalError reports a record source failure (timeout or backend fault)
// for one query key. Callers may retry it.
type RetrievalError struct {
	Kind string // query kind, e.g. "totals"
	Key  string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s %s: %v", e.Kind, e.Key, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// UnknownLocationError reports a location name missing from the reference data.
type UnknownLocationError struct {
	Name string
}

func (e *UnknownLocationError) Error() string {
	return fmt.Sprintf("unknown location %q", e.Name)
}

// UnknownColumnError reports a sort column the table does not have.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column %q", e.Column)
}
