package optimize

import (
	"fmt"

	"github.com/samsarahq/go/oops"
)

// ErrorKind discriminates the error taxonomy from spec.md §7.
type ErrorKind int

const (
	// KindUnexpectedInternal covers any failure not otherwise classified.
	KindUnexpectedInternal ErrorKind = iota
	// KindComplexityExceeded means the selection exceeded the configured
	// join/prefetch budget.
	KindComplexityExceeded
	// KindInvalidPagination means contradictory or negative pagination
	// arguments were supplied.
	KindInvalidPagination
	// KindSchemaMismatch means a selection could not be resolved against
	// the known object-type/model mapping.
	KindSchemaMismatch
	// KindFilterValidation means a filterset class rejected its arguments.
	KindFilterValidation
)

// OptimizerError is the common shape for every error this package raises
// deliberately (as opposed to bugs), grounded on the teacher's
// SafeError/ClientError pattern (graphql/errors.go) and extended with a
// Kind discriminator so callers can branch with errors.As.
type OptimizerError struct {
	Kind    ErrorKind
	Message string
	// Cause is the wrapped underlying error, if any.
	Cause error
}

func (e *OptimizerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

func (e *OptimizerError) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, format string, args ...interface{}) *OptimizerError {
	return &OptimizerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ComplexityExceededError reports that a selection's recursive to-one +
// to-many descent count exceeded the configured ceiling (spec.md §8.7).
func ComplexityExceededError(max int) error {
	return newError(KindComplexityExceeded, "query complexity exceeds the maximum allowed of %d", max)
}

// InvalidPaginationError reports contradictory or negative pagination
// arguments (spec.md §4.5).
func InvalidPaginationError(format string, args ...interface{}) error {
	return newError(KindInvalidPagination, format, args...)
}

// SchemaMismatchError reports that a selection could not be resolved
// against the known object-type/model mapping (spec.md §4.1).
func SchemaMismatchError(format string, args ...interface{}) error {
	return newError(KindSchemaMismatch, format, args...)
}

// FilterValidationError reports that a filterset class rejected its
// arguments.
func FilterValidationError(cause error) error {
	return &OptimizerError{Kind: KindFilterValidation, Message: "filter validation failed", Cause: cause}
}

// wrapInternal wraps an unexpected error using github.com/samsarahq/go/oops,
// the same wrapping library the teacher uses in sqlgen/db.go and
// batch/batchcache.go for exactly this kind of "something unexpected broke,
// attach context" case.
func wrapInternal(cause error, format string, args ...interface{}) error {
	wrapped := oops.Wrapf(cause, format, args...)
	return &OptimizerError{Kind: KindUnexpectedInternal, Message: wrapped.Error(), Cause: cause}
}

// Kind returns the error's taxonomy classification, or KindUnexpectedInternal
// if err is not an *OptimizerError.
func Kind(err error) ErrorKind {
	if oe, ok := err.(*OptimizerError); ok {
		return oe.Kind
	}
	return KindUnexpectedInternal
}
