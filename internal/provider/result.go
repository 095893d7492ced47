// Package provider defines the tagged result returned by external data providers.
package provider

import "fmt"

// Status tags the outcome of a provider call.
type Status int

const (
	// StatusOK means the provider returned a complete record.
	StatusOK Status = iota
	// StatusAbsent means the provider answered but had no usable record.
	StatusAbsent
	// StatusTransportError means the call failed or the payload could not be decoded.
	StatusTransportError
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAbsent:
		return "absent"
	case StatusTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is either Ok(record), Absent, or TransportError(detail).
type Result[T any] struct {
	status Status
	value  T
	detail string
}

// Ok wraps a complete record.
func Ok[T any](v T) Result[T] {
	return Result[T]{status: StatusOK, value: v}
}

// Absent marks a well-formed response that carried no usable record.
func Absent[T any](detail string) Result[T] {
	return Result[T]{status: StatusAbsent, detail: detail}
}

// TransportError marks a failed call or malformed payload.
func TransportError[T any](err error) Result[T] {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Result[T]{status: StatusTransportError, detail: detail}
}

// Status returns the result tag.
func (r Result[T]) Status() Status {
	return r.status
}

// OK reports whether a record is present.
func (r Result[T]) OK() bool {
	return r.status == StatusOK
}

// Get returns the record and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.status == StatusOK
}

// Detail describes why no record is present. Empty for Ok results.
func (r Result[T]) Detail() string {
	return r.detail
}

// Map transforms the record of an Ok result, passing other tags through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if r.status != StatusOK {
		return Result[U]{status: r.status, detail: r.detail}
	}
	return Ok(fn(r.value))
}
