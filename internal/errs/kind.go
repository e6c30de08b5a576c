package errs

import "errors"

// Kind classifies an error for callers that decide between retry, drop and fail.
type Kind string

const (
	KindUnknown           Kind = ""
	KindStaleState        Kind = "stale_state"
	KindInvalidTransition Kind = "invalid_transition"
	KindUploadFailure     Kind = "upload_failure"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New returns a sentinel error tagged with kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Mark tags err with kind. The original chain stays reachable.
func Mark(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the outermost kind in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries kind.
func IsKind(err error, kind Kind) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ke, ok := e.(*kindError); ok && ke.kind == kind {
			return true
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if IsKind(inner, kind) {
					return true
				}
			}
			return false
		}
	}
	return false
}

// Unavailable tags a store or transport failure as transient and records
// where it surfaced.
func Unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return Mark(WithStack(Wrap(err, msg)), KindStoreUnavailable)
}
