package geometry

import "errors"

// Kind classifies why an extraction failed
type Kind string

const (
	KindEmptyOrMissingFile Kind = "empty_or_missing_file"
	KindCorruptFile        Kind = "corrupt_file"
	KindUnsupportedFormat  Kind = "unsupported_format"
	KindLibraryUnavailable Kind = "library_unavailable"
	KindIncompleteGeometry Kind = "incomplete_geometry"
	KindSourceFileMissing  Kind = "source_file_missing"
	KindUnexpectedFailure  Kind = "analysis_failed"
)

// Error is a typed extraction failure. Diagnostics are merged into the
// persisted error document next to "error" and "error_kind".
type Error struct {
	Kind        Kind
	Message     string
	Diagnostics map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Payload renders the error as the structured geometric_data document
func (e *Error) Payload() map[string]any {
	out := make(map[string]any, len(e.Diagnostics)+2)
	for k, v := range e.Diagnostics {
		out[k] = v
	}
	out["error"] = e.Message
	out["error_kind"] = string(e.Kind)
	return out
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of a geometry error anywhere in err's chain
func KindOf(err error) (Kind, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind, true
	}
	return "", false
}

// AsError converts any error into a geometry Error, wrapping unknown
// failures as KindUnexpectedFailure.
func AsError(err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return newError(KindUnexpectedFailure, "Analysis failed: "+err.Error())
}
