package ber

import (
	"errors"
	"strconv"
)

// Errors
var (
	ErrTruncated       = errors.New("truncated")
	ErrTagMismatch     = errors.New("tag mismatch")
	ErrRecursionLimit  = errors.New("recursion limit exceeded")
	ErrLengthTooLarge  = errors.New("length too large")
	ErrInvalidEncoding = errors.New("invalid encoding")
)

// DecodeError is the error returned by every decoder in this package.
// Err is one of the sentinel errors above, so callers can use errors.Is.
type DecodeError struct {
	Err error
	// Offset is the absolute position in the captured buffer where decoding failed.
	Offset int
	// Detail names the field or the check that failed.
	Detail string
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Error() string {
	b := []byte("ber: ")
	b = append(b, e.Err.Error()...)
	if e.Detail != "" {
		b = append(b, " ("...)
		b = append(b, e.Detail...)
		b = append(b, ')')
	}
	b = strconv.AppendInt(append(b, " at offset "...), int64(e.Offset), 10)
	return string(b)
}

func newError(err error, offset int, detail string) *DecodeError {
	return &DecodeError{Err: err, Offset: offset, Detail: detail}
}

// withDetail prefixes the detail of a DecodeError with a field path.
func withDetail(err error, field string) error {
	var de *DecodeError
	if field == "" || !errors.As(err, &de) {
		return err
	}
	if de.Detail == "" {
		return &DecodeError{Err: de.Err, Offset: de.Offset, Detail: field}
	}
	return &DecodeError{Err: de.Err, Offset: de.Offset, Detail: field + ": " + de.Detail}
}
