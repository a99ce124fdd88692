package myerrors

import "errors"

var (
	// ErrNotFound maps to 404 at the HTTP boundary.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden maps to 403: the actor exists but may not touch this resource.
	ErrForbidden = errors.New("operation not allowed for this actor")

	// ErrStatusConflict maps to 400: the transition guard rejected the
	// operation in the delivery's current state. Never a 500.
	ErrStatusConflict = errors.New("operation not allowed in current delivery status")

	// ErrValidation maps to 400; wrap it with field detail.
	ErrValidation = errors.New("validation failed")
)
