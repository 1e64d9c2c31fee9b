package query

import "errors"

var (
	// ErrInvalidRequestShape is returned when a raw request, or a value that
	// must be a mapping, is not mapping-like.
	ErrInvalidRequestShape = errors.New("query: request must be a mapping")

	// ErrInvalidIdentifier is returned when a text value for an identifier
	// typed field cannot be coerced by the schema.
	ErrInvalidIdentifier = errors.New("query: invalid identifier")
)
