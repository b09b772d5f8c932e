package interceptor

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

// Text codes attached to dispatcher errors.
const (
	TextCodeInvalidOperation   = "INVALID_OPERATION"
	TextCodeDuplicateOperation = "DUPLICATE_OPERATION"
	TextCodeUnknownOperation   = "UNKNOWN_OPERATION"
	TextCodePoolClosed         = "POOL_CLOSED"
	TextCodePoolFull           = "POOL_FULL"
)

// ErrPoolClosed is returned by Pool.Submit once the pool is closed.
var ErrPoolClosed = errors.New("worker pool is closed", errors.CategoryOperation).
	WithTextCode(TextCodePoolClosed)

// ErrPoolFull is returned by Pool.TrySubmit when the queue has no room.
var ErrPoolFull = errors.New("worker pool queue is full", errors.CategoryOperation).
	WithTextCode(TextCodePoolFull)

func invalidOperationError(name string, err error) error {
	return errors.FromOzzoValidation(err, fmt.Sprintf("invalid operation %q", name)).
		WithTextCode(TextCodeInvalidOperation).
		WithMetadata(map[string]any{"operation": name})
}

func duplicateOperationError(name string) error {
	return errors.New(fmt.Sprintf("operation %q registered twice", name), errors.CategoryConflict).
		WithTextCode(TextCodeDuplicateOperation).
		WithMetadata(map[string]any{"operation": name})
}

func unknownOperationError(name string) error {
	return errors.New(fmt.Sprintf("operation %q is not registered", name), errors.CategoryNotFound).
		WithTextCode(TextCodeUnknownOperation).
		WithMetadata(map[string]any{"operation": name})
}

// IsInvalidOperation reports whether err came from a rejected declaration.
func IsInvalidOperation(err error) bool {
	return hasTextCode(err, TextCodeInvalidOperation)
}

// IsDuplicateOperation reports whether err came from registering a name twice.
func IsDuplicateOperation(err error) bool {
	return hasTextCode(err, TextCodeDuplicateOperation)
}

func hasTextCode(err error, code string) bool {
	var e *errors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.TextCode == code
}

// computeError carries a failure of the wrapped operation through a backend's
// get-or-compute call so it can be told apart from a backend failure.
type computeError struct {
	err error
}

func (e *computeError) Error() string { return e.err.Error() }
func (e *computeError) Unwrap() error { return e.err }
