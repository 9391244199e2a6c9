package resilience

import (
	"errors"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig controls the backoff schedule applied to calls against the
// speech APIs.
type RetryConfig struct {
	MaxAttempts       int           // Total attempts, including the first
	InitialBackoff    time.Duration // Sleep after the first failure
	MaxBackoff        time.Duration // Cap on any single sleep
	BackoffMultiplier float64       // Growth factor between attempts
	Jitter            bool          // Randomize each sleep by up to 25%
}

// DefaultRetryConfig returns the schedule used when a caller passes nil.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableFunc is one attempt of the operation being retried.
type RetryableFunc func() error

// IsRetryableError classifies whether a failed attempt is worth repeating.
type IsRetryableError func(error) bool

// Retry runs fn up to MaxAttempts times with exponential backoff between
// failures. A non-retryable error aborts immediately; otherwise the last
// error is returned after the final attempt.
func Retry(fn RetryableFunc, config *RetryConfig, isRetryable IsRetryableError) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryable != nil && !isRetryable(err) {
			return err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		sleep := backoff
		if config.Jitter && backoff > 0 {
			sleep += time.Duration(rand.Int63n(int64(backoff)/4 + 1))
		}
		if sleep > config.MaxBackoff {
			sleep = config.MaxBackoff
		}
		time.Sleep(sleep)

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return lastErr
}

// transientFragments are substrings of error messages that indicate a
// failure likely to clear on its own: connectivity, timeouts, throttling.
var transientFragments = []string{
	"connection refused",
	"connection reset",
	"connection closed",
	"no route to host",
	"network is unreachable",
	"unavailable",
	"deadline exceeded",
	"timeout",
	"resource exhausted",
	"too many connections",
	"rate limit",
}

// IsRetryableNetworkError reports whether err looks like a transient
// network-level failure. Matching is on the message text since the speech
// SDKs do not expose typed transport errors.
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// RetryableError marks an error as retryable regardless of its message,
// used for HTTP statuses like 503 where the text carries no signal.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError wraps err as retryable; a nil err stays nil.
func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries a RetryableError anywhere in its
// chain.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
