package sockaddr

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when a buffer is too short for the family tag
	// or for the structure the tag selects.
	ErrTruncated = errors.New("address buffer too short")

	ErrInvalidAddress = errors.New("invalid address for family")
	ErrWrongType      = errors.New("wrong value type")
	ErrOutOfRange     = errors.New("value out of range")
	ErrFieldTooLong   = errors.New("value longer than field")
	ErrWrongLength    = errors.New("wrong input length")
)

// A FieldError reports a field of a structured address that could not be
// encoded.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
