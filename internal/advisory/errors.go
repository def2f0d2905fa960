package advisory

import (
	"context"
	"errors"
	"net/http"
)

// ErrBreakerOpen is the distinguished breaker-open result. Callers route to
// the offline fallback on errors.Is(err, ErrBreakerOpen) instead of treating
// it as a crash.
var ErrBreakerOpen = errors.New("advisory breaker open")

// ErrInvalidPayload marks a structured response that was not valid JSON or
// did not match the expected shape. It is never silently coerced.
var ErrInvalidPayload = errors.New("invalid advisory payload")

// statusCoder is satisfied by remote errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// classify buckets a transport failure for the attempt log.
func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.HTTPStatus() {
		case http.StatusTooManyRequests:
			return "quota"
		case 529:
			return "overloaded"
		default:
			return "remote"
		}
	}
	return "network"
}
