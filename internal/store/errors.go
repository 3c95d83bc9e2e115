package store

import "errors"

// Precondition failures raised before any remote call is attempted.
// Anything else surfaced by an operation is a wrapped remote failure.
var (
	ErrUnauthenticated = errors.New("no authenticated user")
	ErrAlreadyEnrolled = errors.New("already enrolled in course")
	ErrNoCapacity      = errors.New("no capacity left in course")
)
