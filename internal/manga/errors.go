package manga

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable covers network and transport failures. Usually transient.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrUnexpectedFormat means the source response no longer matches the parser.
	ErrUnexpectedFormat = errors.New("unexpected source format")
	// ErrNotFound means a lookup yielded nothing. Callers treat it as an empty result.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration is returned for invalid adapter setups at startup.
	ErrConfiguration = errors.New("configuration error")
)

const maxFragment = 200

// FormatError carries the payload fragment that failed to parse.
type FormatError struct {
	Source   string
	What     string
	Fragment string
	Err      error
}

// NewFormatError builds a FormatError, truncating the payload fragment
func NewFormatError(source, what string, payload []byte, err error) *FormatError {
	frag := string(payload)
	if len(frag) > maxFragment {
		frag = frag[:maxFragment] + "..."
	}
	return &FormatError{Source: source, What: what, Fragment: frag, Err: err}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unexpected %s format: %v", e.Source, e.What, e.Err)
	}
	return fmt.Sprintf("%s: unexpected %s format", e.Source, e.What)
}

// Unwrap exposes both the sentinel and the underlying decode error.
func (e *FormatError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnexpectedFormat}
	}
	return []error{ErrUnexpectedFormat, e.Err}
}
