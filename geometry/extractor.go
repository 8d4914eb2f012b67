package geometry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Handler extracts metrics from one format
type Handler interface {
	Format() Format
	Extract(data []byte) (*Metrics, error)
}

// Extractor dispatches raw file bytes to the handler installed for their
// format. A known format without a handler fails as KindLibraryUnavailable.
type Extractor struct {
	handlers map[Format]Handler
}

// Option configures an Extractor
type Option func(*Extractor)

// WithHandler installs or replaces the handler for h.Format()
func WithHandler(h Handler) Option {
	return func(e *Extractor) {
		e.handlers[h.Format()] = h
	}
}

// WithoutFormat removes the handler for f
func WithoutFormat(f Format) Option {
	return func(e *Extractor) {
		delete(e.handlers, f)
	}
}

// NewExtractor returns an extractor with the bundled STL and STEP handlers.
// IGES has no bundled handler.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		handlers: map[Format]Handler{
			FormatSTL:  stlHandler{},
			FormatSTEP: stepHandler{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether a handler is installed for f
func (e *Extractor) Supports(f Format) bool {
	_, ok := e.handlers[f]
	return ok
}

// Extract computes metrics for data in the given format
func (e *Extractor) Extract(data []byte, format Format) (*Metrics, error) {
	if format == FormatUnknown {
		return nil, newError(KindUnsupportedFormat, "Unsupported file type.")
	}
	if len(data) == 0 {
		return nil, newError(KindEmptyOrMissingFile, "File is empty or missing.")
	}
	h, ok := e.handlers[format]
	if !ok {
		return nil, newError(KindLibraryUnavailable, unavailableMessage(format))
	}
	return h.Extract(data)
}

// ExtractFile reads path and extracts metrics using the declared extension
func (e *Extractor) ExtractFile(path, ext string) (*Metrics, error) {
	format := FormatFromExtension(ext)
	if format == FormatUnknown {
		return nil, newError(KindUnsupportedFormat, fmt.Sprintf("Unsupported file type: %s.", NormalizeExtension(ext)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(KindEmptyOrMissingFile, "File is empty or missing.")
		}
		return nil, newError(KindUnexpectedFailure, "Analysis failed: "+err.Error())
	}
	return e.Extract(data, format)
}

func unavailableMessage(f Format) string {
	switch f {
	case FormatSTL:
		return "STL processing library not available."
	case FormatSTEP:
		return "STEP processing library not available."
	case FormatIGES:
		return "IGES file analysis is not supported (no library)."
	default:
		return fmt.Sprintf("No analysis library available for %s files.", f)
	}
}
