package advisory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/parleyworks/parley/internal/anthropic"
)

// stubStatusErr carries an HTTP status without being an anthropic.APIError.
type stubStatusErr struct {
	status int
}

func (e *stubStatusErr) Error() string   { return fmt.Sprintf("remote status %d", e.status) }
func (e *stubStatusErr) HTTPStatus() int { return e.status }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"canceled", context.Canceled, "canceled"},
		{"quota", &anthropic.APIError{StatusCode: 429, Type: "rate_limit_error"}, "quota"},
		{"overloaded", &anthropic.APIError{StatusCode: 529, Type: "overloaded_error"}, "overloaded"},
		{"server error", &anthropic.APIError{StatusCode: 500, Message: "boom"}, "remote"},
		{"wrapped status", fmt.Errorf("advisory call: %w", &anthropic.APIError{StatusCode: 429}), "quota"},
		{"other remote impl", &stubStatusErr{status: 429}, "quota"},
		{"plain transport error", errors.New("dial tcp: connection refused"), "network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
