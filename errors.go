package ambre

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies the error kinds enumerated in the engine's error
// handling design: every failure a caller can observe is one of these.
type Kind int

const (
	// KindInvalidItem: empty string, codec-alphabet violation, or the
	// item contains the reserved column/value separator.
	KindInvalidItem Kind = iota
	// KindMaxLenExceeded: a strict-mode transaction exceeds max_len.
	KindMaxLenExceeded
	// KindUnknownAntecedent: predictor saw a never-seen symbol and the
	// skip-unknown flag was off.
	KindUnknownAntecedent
	// KindIncompatibleMerge: mismatched configuration across merge inputs.
	KindIncompatibleMerge
	// KindSchemaMismatch: persisted blob carries an unknown schema version.
	KindSchemaMismatch
	// KindConfigError: non-positive thresholds, empty consequent set,
	// contradictory option flags.
	KindConfigError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidItem:
		return "InvalidItem"
	case KindMaxLenExceeded:
		return "MaxLenExceeded"
	case KindUnknownAntecedent:
		return "UnknownAntecedent"
	case KindIncompatibleMerge:
		return "IncompatibleMerge"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindConfigError:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every public operation
// that can fail per the engine's error handling design. Messages are
// formatted with cockroachdb/errors and Unwrap exposes a wrapped cause to
// errors.Is/As; only the formatted message is kept, so no stack trace is
// attached.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: errors.Newf(msg, args...).Error()}
}

func wrapError(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
