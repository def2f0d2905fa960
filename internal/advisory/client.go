package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	defaultMaxTokens = 4096
	probeMaxTokens   = 8
)

// Remote is the reasoning endpoint boundary. Failures are treated opaquely:
// the client only distinguishes succeeded from failed.
type Remote interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// Validator lets a structured response type check its own shape after decoding.
type Validator interface {
	Validate() error
}

// Client issues reasoning requests with retry, exponential backoff, and a
// shared circuit breaker. Each request is otherwise independent; no partial
// state is carried between calls.
type Client struct {
	remote   Remote
	breaker  *Breaker
	attempts int
	unit     time.Duration
	logger   *slog.Logger

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a resilient advisory client. attempts is the per-request retry
// budget M; unit scales the 2^i backoff delays (one second in production).
func New(remote Remote, breaker *Breaker, attempts int, unit time.Duration, logger *slog.Logger) *Client {
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		remote:   remote,
		breaker:  breaker,
		attempts: attempts,
		unit:     unit,
		logger:   logger,
		sleep:    ctxSleep,
	}
}

// Breaker exposes the shared circuit breaker for status reporting.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Request sends prompt with the accumulated dialogue context, retrying up to
// the attempt budget with deterministic 2^i backoff between attempts. After
// the budget is exhausted, or while the breaker is open, it returns
// ErrBreakerOpen so the caller can route to the offline fallback.
func (c *Client) Request(ctx context.Context, prompt, dialogueContext string) (string, error) {
	if !c.breaker.Allow() {
		c.logger.Warn("advisory request short-circuited", "breaker", string(c.breaker.State()))
		return "", ErrBreakerOpen
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		text, err := c.remote.Complete(ctx, dialogueContext, prompt, defaultMaxTokens)
		if err == nil {
			c.breaker.Success()
			return text, nil
		}

		c.breaker.Failure()
		c.logger.Warn("advisory attempt failed",
			"attempt", attempt,
			"of", c.attempts,
			"class", classify(err),
			"error", err,
		)

		if attempt == c.attempts {
			break
		}
		delay := c.unit * (1 << attempt)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			// Disconnects abort in-flight retries rather than waiting out the backoff.
			return "", fmt.Errorf("advisory retry aborted: %w", sleepErr)
		}
	}

	return "", ErrBreakerOpen
}

// RequestStructured issues Request, strips any code-fence wrapper the remote
// service added, and decodes the payload into v. If v implements Validator
// its shape check runs too. JSON or shape failures are classified as
// ErrInvalidPayload, distinct from transport failures.
func (c *Client) RequestStructured(ctx context.Context, prompt, dialogueContext string, v any) error {
	raw, err := c.Request(ctx, prompt, dialogueContext)
	if err != nil {
		return err
	}

	cleaned := stripFences(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		c.logger.Error("structured advisory payload rejected", "error", err, "raw", raw)
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			c.logger.Error("structured advisory payload failed validation", "error", err)
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}

// MeasureLatency probes the remote endpoint with a minimal payload and
// returns elapsed milliseconds, or -1 on failure. It bypasses the retry path
// and does not touch the breaker; it is a health signal, not traffic.
func (c *Client) MeasureLatency(ctx context.Context) int64 {
	start := time.Now()
	if _, err := c.remote.Complete(ctx, "", "ping", probeMaxTokens); err != nil {
		return -1
	}
	return time.Since(start).Milliseconds()
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ctxSleep waits for d or until ctx is cancelled.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
