package netsec

import "errors"

// ErrWrapper is our error wrapper for Go errors. The key objective of
// this structure is to properly set Failure, which is also returned by
// the Error() method, to be one of the stable failure strings defined
// in classify.go, so that callers and metrics never depend on the exact
// text of an underlying error.
type ErrWrapper struct {
	// Failure is the stable failure string.
	Failure string

	// Operation is the operation that failed (e.g. ConnectOperation).
	//
	// When an ErrWrapper wraps another ErrWrapper, the topmost wrapper
	// keeps the innermost major operation, so the operation callers see
	// is the one that originally failed.
	Operation string

	// WrappedErr is the error that we're wrapping.
	WrappedErr error
}

// Error returns the failure string for this error.
func (e *ErrWrapper) Error() string {
	return e.Failure
}

// Unwrap allows to access the underlying error.
func (e *ErrWrapper) Unwrap() error {
	return e.WrappedErr
}

// classifier is the type of the function that maps a Go error to a
// stable failure string.
type classifier func(err error) string

// NewErrWrapper creates a new ErrWrapper using the given classifier,
// operation name, and underlying error.
//
// This function panics if classifier is nil, or operation is the empty
// string, or error is nil.
//
// If the err argument has already been classified, the returned wrapper
// reuses the existing classification and the innermost operation.
func NewErrWrapper(c classifier, op string, err error) *ErrWrapper {
	var wrapper *ErrWrapper
	if errors.As(err, &wrapper) {
		return &ErrWrapper{
			Failure:    wrapper.Failure,
			Operation:  wrapper.Operation,
			WrappedErr: err,
		}
	}
	if c == nil {
		panic("nil classifier")
	}
	if op == "" {
		panic("empty op")
	}
	if err == nil {
		panic("nil err")
	}
	return &ErrWrapper{
		Failure:    c(err),
		Operation:  op,
		WrappedErr: err,
	}
}
