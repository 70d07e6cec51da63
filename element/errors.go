package element

import (
	"errors"
	"fmt"
)

// Sentinel kinds for image source failures.
var (
	// ErrOpen is returned when the source cannot be opened or read.
	ErrOpen = errors.New("unable to open image source")

	// ErrFormat is returned when the image format cannot be determined.
	ErrFormat = errors.New("unable to determine image format")

	// ErrDecode is returned when the format is known but the pixels cannot be decoded.
	ErrDecode = errors.New("unable to decode image")
)

// SourceError reports a failure to load an image. Kind is one of ErrOpen,
// ErrFormat or ErrDecode; errors.Is matches both the kind and the cause.
type SourceError struct {
	Kind   error
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("element: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("element: %s: %v: %v", e.Source, e.Kind, e.Err)
}

// Unwrap returns the kind and the underlying cause.
func (e *SourceError) Unwrap() []error { return []error{e.Kind, e.Err} }

func sourceError(kind error, source string, err error) error {
	return &SourceError{Kind: kind, Source: source, Err: err}
}
