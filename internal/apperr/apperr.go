// Package apperr defines the §7 typed error taxonomy shared across ReMind's
// business layers. The adapters in internal/adapters return plain wrapped
// errors and do not produce these kinds; the layers that call them (vault,
// retrieval, narration, patientquery, the passthrough handler) wrap adapter
// failures into a Kind. The HTTP facade is the only place that maps a Kind
// back to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error categories the spec names.
type Kind string

const (
	KindInput                Kind = "input_error"
	KindNotFound              Kind = "not_found"
	KindRetrievalUnavailable  Kind = "retrieval_unavailable"
	KindNarrationUnavailable  Kind = "narration_unavailable"
	KindTTSUnavailable        Kind = "tts_unavailable"
	KindLipSyncUnavailable    Kind = "lipsync_unavailable"
	KindTimeout               Kind = "timeout"
	KindInvariantViolation    Kind = "invariant_violation"
	KindComposeFailed         Kind = "compose_failed"
	KindExternalUnavailable   Kind = "external_unavailable"
)

// Error is the concrete typed error carried through ReMind's business
// layers. Callers branch on Kind, never on message text.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed Error with no underlying cause.
func New(kind Kind, detail string) error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds a typed Error that preserves the original cause for %w chains.
func Wrap(kind Kind, detail string, cause error) error {
	if cause == nil {
		return New(kind, detail)
	}
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

// KindOf extracts the Kind of err, or "" if err is not (or does not wrap) an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func InputError(detail string) error               { return New(KindInput, detail) }
func NotFound(detail string) error                  { return New(KindNotFound, detail) }
func RetrievalUnavailable(detail string, cause error) error {
	return Wrap(KindRetrievalUnavailable, detail, cause)
}
func NarrationUnavailable(detail string, cause error) error {
	return Wrap(KindNarrationUnavailable, detail, cause)
}
func TTSUnavailable(detail string, cause error) error {
	return Wrap(KindTTSUnavailable, detail, cause)
}
func LipSyncUnavailable(detail string, cause error) error {
	return Wrap(KindLipSyncUnavailable, detail, cause)
}
func Timeout(detail string, cause error) error {
	return Wrap(KindTimeout, detail, cause)
}
func InvariantViolation(detail string) error { return New(KindInvariantViolation, detail) }
func ComposeFailed(detail string) error      { return New(KindComposeFailed, detail) }
func ExternalUnavailable(detail string, cause error) error {
	return Wrap(KindExternalUnavailable, detail, cause)
}
