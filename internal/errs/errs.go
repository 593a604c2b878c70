// Package errs defines the typed, inspectable error kinds the engine can
// return. No panics or exceptions are used for control flow; every failure
// mode named by the fingerprinting pipeline has a distinct Kind.
package errs

import "fmt"

// Kind identifies a class of failure. Kinds are compared with Is, not with
// equality on the wrapping *Error, so a Kind survives fmt.Errorf("%w", ...)
// wrapping.
type Kind int

const (
	// Unknown is the zero value and should never be returned deliberately.
	Unknown Kind = iota

	// InvalidAudioLength: spectrogram shorter than the fingerprint type's
	// window offset c, or a requested snip exceeds the clip duration.
	InvalidAudioLength

	// TooFewPeaks: fewer than 4 peaks survived peak detection.
	TooFewPeaks

	// NoQuadsFound: peaks were present but no valid quad was formed.
	NoQuadsFound

	// InvalidFpType: caller passed a value that is neither Reference nor
	// Query.
	InvalidFpType

	// DuplicateTitle: store() was called with a title already present in
	// the catalog. Non-fatal; callers are expected to check for it.
	DuplicateTitle

	// WrongFingerprintType: store() was given a Query fingerprint, or
	// query() was given a Reference fingerprint.
	WrongFingerprintType

	// InvalidQuad: a candidate quad is degenerate (division by zero in a
	// filter test). The matcher rejects such candidates through
	// filterCandidate's ok result and does not return this kind.
	InvalidQuad
)

func (k Kind) String() string {
	switch k {
	case InvalidAudioLength:
		return "invalid audio length"
	case TooFewPeaks:
		return "too few peaks"
	case NoQuadsFound:
		return "no quads found"
	case InvalidFpType:
		return "invalid fingerprint type"
	case DuplicateTitle:
		return "duplicate title"
	case WrongFingerprintType:
		return "wrong fingerprint type"
	case InvalidQuad:
		return "invalid quad"
	default:
		return "unknown error"
	}
}

// Error is the concrete error value returned by the engine. Op names the
// operation that failed (e.g. "fingerprint.Build", "store.InsertRecord"); Err, when
// non-nil, wraps an underlying cause (I/O failure, driver error, ...).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error with no wrapped cause.
func New(op string, kind Kind) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap constructs an *Error wrapping an underlying cause.
func Wrap(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !asError(err, &e) {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
