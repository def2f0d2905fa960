package livechannel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/parleyworks/parley/internal/session"
)

// Subjects for the live channel's event stream and the advisories the
// pipeline publishes back.
const (
	SubjectTranscript = "parley.live.transcript"
	SubjectIntensity  = "parley.live.intensity"
	SubjectError      = "parley.live.error"
	SubjectDegraded   = "parley.session.degraded"
)

// TranscriptEvent is a transcript-update from the capture front end.
type TranscriptEvent struct {
	Text    string    `json:"text"`
	IsFinal bool      `json:"is_final"`
	At      time.Time `json:"at"`
}

// IntensityEvent carries one acoustic energy sample.
type IntensityEvent struct {
	Flux float64 `json:"flux"`
}

// ErrorEvent is a connection-error signal with a machine-readable marker.
type ErrorEvent struct {
	Marker string `json:"marker"`
	Detail string `json:"detail,omitempty"`
}

// DegradedAdvisory is the operator-visible notice published when the session
// falls back to simulation mode.
type DegradedAdvisory struct {
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// Client bridges the NATS live channel into the session's ingest queue and
// publishes session advisories back out. It implements session.Notifier and
// session.ChannelStatus.
type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	queue  *session.IngestQueue
	logger *slog.Logger
}

// Connect dials NATS with reconnect handling.
func Connect(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// Subscribe attaches handlers for the three live-channel subjects. Decoded
// events enter the bounded ingest queue in arrival order; the queue, not the
// NATS callback, applies backpressure.
func (c *Client) Subscribe(queue *session.IngestQueue) error {
	c.queue = queue
	if err := c.subscribe(SubjectTranscript, c.onTranscript); err != nil {
		return err
	}
	if err := c.subscribe(SubjectIntensity, c.onIntensity); err != nil {
		return err
	}
	return c.subscribe(SubjectError, c.onError)
}

func (c *Client) subscribe(subject string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) onTranscript(data []byte) {
	var evt TranscriptEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to parse transcript event", "error", err)
		return
	}
	c.queue.Push(session.Event{
		Kind:    session.EventTranscript,
		Text:    evt.Text,
		IsFinal: evt.IsFinal,
		At:      evt.At,
	})
}

func (c *Client) onIntensity(data []byte) {
	var evt IntensityEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to parse intensity event", "error", err)
		return
	}
	c.queue.Push(session.Event{Kind: session.EventIntensity, Flux: evt.Flux})
}

func (c *Client) onError(data []byte) {
	var evt ErrorEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		c.logger.Error("failed to parse channel error event", "error", err)
		return
	}
	c.queue.Push(session.Event{Kind: session.EventChannelError, Marker: evt.Marker})
}

// Ready reports whether the connection is established. With
// RetryOnFailedConnect the client dials in the background, so a session can
// be CONNECTING while NATS is still reconnecting.
func (c *Client) Ready() bool {
	return c.conn.Status() == nats.CONNECTED
}

// NotifyDegraded publishes the operator-visible degradation advisory.
func (c *Client) NotifyDegraded(reason string) {
	payload, err := json.Marshal(DegradedAdvisory{
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := c.conn.Publish(SubjectDegraded, payload); err != nil {
		c.logger.Error("failed to publish degraded advisory", "error", err)
	}
}

// Close unsubscribes and drops the connection.
func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
