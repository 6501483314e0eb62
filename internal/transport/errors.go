package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tyburd/mangabot/internal/manga"
)

// FetchError is returned for every failed fetch.
// Transient failures (timeouts, connection errors, 429, 5xx) may be retried by
// the caller; permanent ones (other 4xx) should not.
type FetchError struct {
	URL        string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{manga.ErrSourceUnavailable}
	}
	return []error{manga.ErrSourceUnavailable, e.Err}
}

// IsTransient reports whether err is a fetch failure worth retrying
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Transient
	}
	return false
}

// IsNotFound reports whether err is an HTTP 404 from the source
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}

// shouldRetry determines if an HTTP status code is a transient failure
func shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || // 429
		statusCode == http.StatusRequestTimeout || // 408
		statusCode >= 500
}

// classify wraps a failed round trip. Timeouts and network errors are
// transient; a cancelled caller is not.
func classify(url string, err error) *FetchError {
	return &FetchError{
		URL:       url,
		Transient: !errors.Is(err, context.Canceled),
		Err:       err,
	}
}
