// Package engineerr centralizes the abstract error taxonomy from spec
// §7. Every failure inside tourscope is classifiable into one of six
// kinds and never propagates to the host as a panic; components
// recover locally and leave the engine in a well-defined quiescent
// state (empty results, unchanged config, no-op navigation).
package engineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the six abstract error kinds spec §7 defines.
type Kind string

const (
	// KindConfiguration covers an invalid merged configuration; the
	// previous config is retained and a warning surfaced.
	KindConfiguration Kind = "configuration"

	// KindTourNotReady covers a tour-adapter binding timeout; search
	// becomes inert until a later tour-load event re-arms it.
	KindTourNotReady Kind = "tour_not_ready"

	// KindDataSourceLoadFailure covers an HTTP/parse error for
	// business JSON or CSV; the source is treated as empty and
	// indexing continues from tour data alone.
	KindDataSourceLoadFailure Kind = "data_source_load_failure"

	// KindClassificationAmbiguity covers an unknown element class or
	// multiple sheets-reconciliation candidates; a deterministic
	// fallback is used (Element, or first-by-confidence).
	KindClassificationAmbiguity Kind = "classification_ambiguity"

	// KindActivationFailure covers trigger-retry exhaustion; no
	// throw, the user simply sees no navigation.
	KindActivationFailure Kind = "activation_failure"

	// KindIndexing covers a per-item exception during traversal; the
	// item is skipped and the rest of the build proceeds.
	KindIndexing Kind = "indexing"
)

// Error wraps a Kind, a human-readable message, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Context carries diagnostic key/value pairs (e.g. "index", "id")
	// useful when logging IndexingError per spec §7 ("logged with
	// index and parent id").
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithContext attaches diagnostic fields and returns the receiver for
// chaining at the call site.
func (e *Error) WithContext(kv ...any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, len(kv)/2)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e.Context[key] = kv[i+1]
	}
	return e
}

// As reports whether err is (or wraps) an *Error of kind k and returns
// it, mirroring the standard errors.As pattern used throughout the
// codebase instead of type-switch chains.
func As(err error, k Kind) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}
	if e.Kind != k {
		return nil, false
	}
	return e, true
}

// Is reports whether err is an *Error of kind k, for simple checks.
func Is(err error, k Kind) bool {
	_, ok := As(err, k)
	return ok
}
