package smoothing

import "errors"

var (
	// ErrInvalidArgument is returned when an input is missing, malformed or
	// cannot support the requested basis size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNumericalFailure is returned when the weighted least-squares solve
	// cannot produce a full-rank solution.
	ErrNumericalFailure = errors.New("numerical failure")
)
