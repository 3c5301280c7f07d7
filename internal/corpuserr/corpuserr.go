// Package corpuserr defines the error-kind taxonomy and propagation policy
// from spec.md §7: InputFormatError, NormalizationError, MetadataMissError,
// StoreError, ExternalServiceError, and InvariantViolation.
package corpuserr

import "fmt"

// Kind classifies an Error so callers (mainly internal/batch) can decide
// whether to downgrade, retry, or abort.
type Kind string

const (
	InputFormat      Kind = "input_format"
	Normalization    Kind = "normalization"
	MetadataMiss     Kind = "metadata_miss"
	Store            Kind = "store"
	ExternalService  Kind = "external_service"
	InvariantViolation Kind = "invariant_violation"
)

// Error wraps an underlying error with its Kind, mirroring the teacher's
// fmt.Errorf("...: %w", err) wrapping idiom but carrying a typed
// classification the caller can switch on without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is a *Error of the given kind, unwrapping one
// level (errors.As is avoided here to keep the check allocation-free and
// match the teacher's preference for small direct helpers over the errors
// package's reflection-based matching).
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}

// AnalysisStatus is the per-song status surfaced to users (spec.md §7).
type AnalysisStatus string

const (
	StatusOK      AnalysisStatus = "ok"
	StatusPartial AnalysisStatus = "partial"
	StatusFailed  AnalysisStatus = "failed"
)
