package gcal

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// RateLimitError means the remote asked us to slow down. The executor
// retries these with capped exponential backoff.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("calendar API rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RemoteError is any other remote failure. It is permanent for the item
// that triggered it; the body is kept for diagnostics.
type RemoteError struct {
	Status int
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("calendar API error (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("calendar API error: %v", e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRateLimit reports whether err is a throttling signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// classify maps a raw API error onto the package taxonomy. Google signals
// throttling either as HTTP 429 or as 403 with reason rateLimitExceeded.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return &RateLimitError{Err: err}
		}
		if gerr.Code == http.StatusForbidden {
			for _, item := range gerr.Errors {
				if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
					return &RateLimitError{Err: err}
				}
			}
		}
		return &RemoteError{Status: gerr.Code, Body: gerr.Body, Err: err}
	}
	return &RemoteError{Err: err}
}
