package fetch

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingCredentials is returned when a Kaggle download is attempted without username/key.
	ErrMissingCredentials = errors.New("kaggle credentials missing (set KAGGLE_USERNAME/KAGGLE_KEY or ~/.kaggle/kaggle.json)")
	// ErrNoCSV is returned when a downloaded archive holds no .csv file.
	ErrNoCSV = errors.New("no csv file found in dataset")
)

// HTTPError represents a non-2xx response from a data source.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http error: status=%d url=%s body=%s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("http error: status=%d url=%s", e.StatusCode, e.URL)
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *HTTPError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.HTTPError.Error())
}

// NotFoundError indicates the dataset or file does not exist (404).
type NotFoundError struct{ *HTTPError }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.HTTPError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*HTTPError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.HTTPError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.HTTPError.Error())
}

// ServerError indicates 5xx errors from the source.
type ServerError struct{ *HTTPError }

func (e *ServerError) Error() string { return fmt.Sprintf("source error: %s", e.HTTPError.Error()) }

// UnreachableError indicates the host could not be reached at all.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }
