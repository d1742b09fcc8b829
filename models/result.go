package models

// Result carries either a value or the reason it could not be produced.
// Fail-soft boundaries return a Result instead of an error so that "no data"
// stays distinguishable from zero-valued data.
type Result[T any] struct {
	Value T
	Err   error
}

// Success wraps a value
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps a reason; Value is the zero value of T
func Failure[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result holds data
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Reason returns the failure text, or "" on success
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
