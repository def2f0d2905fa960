package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleyworks/parley/internal/advisory"
	"github.com/parleyworks/parley/internal/telemetry"
)

// Responder is the live advisory channel. The production implementation is
// the resilient advisory client.
type Responder interface {
	Request(ctx context.Context, prompt, dialogueContext string) (string, error)
}

// Simulator is the scenario library's offline response generator.
type Simulator interface {
	SimulateOffline(scenarioID, inputText string) string
}

// Notifier receives the operator-visible advisory emitted on entering
// DEGRADED. Optional; slog always records the transition regardless.
type Notifier interface {
	NotifyDegraded(reason string)
}

// ChannelStatus reports live-transport readiness. A notifier that also
// implements it gates the CONNECTING → LIVE transition: the session stays
// CONNECTING while the transport is still dialing, and the first event
// delivered over the channel confirms LIVE.
type ChannelStatus interface {
	Ready() bool
}

// Controller owns one coaching session: the append-only transcript, the
// metric window, the active target pattern, and the LIVE/OFFLINE routing
// state machine. All session state lives here rather than in package
// globals, so independent sessions and deterministic tests are possible.
//
// Mutation happens only on the message-handling path; the mutex guards
// reads from the HTTP surface, not concurrent writers.
type Controller struct {
	advisor  Responder // nil when no live channel is configured
	sim      Simulator
	notifier Notifier
	logger   *slog.Logger

	weights        telemetry.Weights
	offlineLatency time.Duration

	mu             sync.Mutex
	state          ConnectionState
	degradedReason string
	pattern        *telemetry.TargetPattern
	transcript     []DialogueMessage
	window         *telemetry.Window
	fragments      []telemetry.Fragment
	lastIntensity  float64

	// Swapped in tests for deterministic time and instant simulated latency.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option tweaks controller construction.
type Option func(*Controller)

// WithNotifier wires the operator-visible degradation advisory.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithWeights overrides the extraction tuning.
func WithWeights(w telemetry.Weights) Option {
	return func(c *Controller) { c.weights = w }
}

// NewController creates a session in the DISCONNECTED state. A nil advisor
// means the live channel was never configured (e.g. missing credentials):
// the session runs offline-only without crashing.
func NewController(advisor Responder, sim Simulator, windowCapacity int, offlineLatency time.Duration, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		advisor:        advisor,
		sim:            sim,
		logger:         logger,
		weights:        telemetry.DefaultWeights(),
		offlineLatency: offlineLatency,
		state:          StateDisconnected,
		window:         telemetry.NewWindow(windowCapacity),
		now:            time.Now,
		sleep:          ctxSleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect transitions DISCONNECTED → CONNECTING → LIVE. It fails when no
// advisory channel is configured, leaving the session offline-only. When the
// live transport is still dialing, the session stays CONNECTING until an
// event arrives over the channel.
func (c *Controller) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.advisor == nil {
		return fmt.Errorf("no live channel configured")
	}
	if c.state == StateLive {
		return nil
	}
	c.degradedReason = ""
	if cs, ok := c.notifier.(ChannelStatus); ok && !cs.Ready() {
		c.state = StateConnecting
		c.logger.Info("session connecting", "reason", "live transport still dialing")
		return nil
	}
	c.state = StateLive
	c.logger.Info("session live")
	return nil
}

// Disconnect drops to DISCONNECTED synchronously. Events arriving from the
// severed channel afterwards are discarded, so no in-flight live response is
// rendered alongside simulated ones.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateDisconnected
	c.degradedReason = ""
	c.logger.Info("session disconnected")
}

// Status returns the connection state and the degradation reason, if any.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, DegradedReason: c.degradedReason}
}

// SetPattern switches the active target pattern. This is a hard session
// boundary: the transcript, metric window, and rate fragments all reset.
func (c *Controller) SetPattern(p telemetry.TargetPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pattern = &p
	c.transcript = nil
	c.fragments = nil
	c.window.Reset()
	c.logger.Info("target pattern selected", "scenario", p.ID, "difficulty", string(p.Difficulty))
}

// Pattern returns the active target pattern, or nil if none is selected.
func (c *Controller) Pattern() *telemetry.TargetPattern {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pattern
}

// Transcript returns a copy of the ordered dialogue so far.
func (c *Controller) Transcript() []DialogueMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DialogueMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// MetricsSnapshot returns the window contents in insertion order.
func (c *Controller) MetricsSnapshot() []telemetry.MetricSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Snapshot()
}

// MetricsAggregate returns the window's mean/peak statistics.
func (c *Controller) MetricsAggregate() telemetry.Aggregates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window.Aggregate()
}

// HandleOperatorMessage appends the operator message, meters it, routes it to
// the live advisory channel or the offline simulator per the current state,
// and appends the synthesized reply. A breaker-open result degrades the
// session and falls back to the simulator in the same call, so the operator
// experience stays continuous.
func (c *Controller) HandleOperatorMessage(ctx context.Context, text string) (DialogueMessage, error) {
	at := c.now()

	c.mu.Lock()
	c.appendMessage(OriginOperator, text, at)
	c.meter(text, at)
	// CONNECTING routes live too: the advisory endpoint is reachable even
	// while the event transport is still dialing.
	live := c.state == StateLive || c.state == StateConnecting
	scenarioID, dialogueContext := c.routingInputs()
	c.mu.Unlock()

	var reply string
	if live {
		got, err := c.advisor.Request(ctx, text, dialogueContext)
		switch {
		case err == nil:
			reply = got
		case errors.Is(err, advisory.ErrBreakerOpen):
			c.degrade("advisory breaker open")
			live = false
		default:
			return DialogueMessage{}, fmt.Errorf("advisory request: %w", err)
		}
	}

	if !live {
		// Fixed simulated latency preserves conversational pacing offline.
		if err := c.sleep(ctx, c.offlineLatency); err != nil {
			return DialogueMessage{}, err
		}
		reply = c.sim.SimulateOffline(scenarioID, text)
	}

	c.mu.Lock()
	msg := c.appendMessage(OriginSyntheticAgent, reply, c.now())
	c.mu.Unlock()
	return msg, nil
}

// Apply processes one queued live-channel event. Events from a severed
// channel (state DISCONNECTED) are discarded.
func (c *Controller) Apply(ctx context.Context, ev Event) {
	c.mu.Lock()
	severed := c.state == StateDisconnected
	if c.state == StateConnecting {
		// First delivered event confirms the channel.
		c.state = StateLive
		c.logger.Info("session live")
	}
	c.mu.Unlock()
	if severed {
		c.logger.Debug("discarding event from severed channel", "kind", string(ev.Kind))
		return
	}

	switch ev.Kind {
	case EventIntensity:
		c.mu.Lock()
		if ev.Flux >= 0 {
			c.lastIntensity = ev.Flux
		}
		c.mu.Unlock()
	case EventTranscript:
		if ev.IsFinal {
			if _, err := c.HandleOperatorMessage(ctx, ev.Text); err != nil {
				c.logger.Error("final transcript handling failed", "error", err)
			}
			return
		}
		at := ev.At
		if at.IsZero() {
			at = c.now()
		}
		c.mu.Lock()
		c.meter(ev.Text, at)
		c.mu.Unlock()
	case EventChannelError:
		if strings.Contains(ev.Marker, BreakerOpenMarker) {
			c.degrade("live channel reported breaker open")
		} else {
			c.logger.Warn("live channel error", "marker", ev.Marker)
		}
	}
}

// appendMessage adds a message to the transcript. Caller holds the lock.
func (c *Controller) appendMessage(origin Origin, text string, at time.Time) DialogueMessage {
	msg := DialogueMessage{
		ID:        uuid.New(),
		Origin:    origin,
		Text:      text,
		Timestamp: at,
	}
	c.transcript = append(c.transcript, msg)
	return msg
}

// meter extracts one metric sample for a fragment and records it in the
// window and the trailing rate fragments. Caller holds the lock.
func (c *Controller) meter(text string, at time.Time) {
	sample := telemetry.Extract(text, at, c.pattern, c.fragments, c.lastIntensity, c.weights)
	c.window.Push(sample)
	c.fragments = append(c.fragments, telemetry.Fragment{Text: text, At: at})
	c.pruneFragments(at)
}

// pruneFragments drops fragments older than the rate window so the trailing
// slice stays bounded. Caller holds the lock.
func (c *Controller) pruneFragments(at time.Time) {
	cutoff := at.Add(-c.weights.RateWindow)
	kept := c.fragments[:0]
	for _, f := range c.fragments {
		if !f.At.Before(cutoff) {
			kept = append(kept, f)
		}
	}
	c.fragments = kept
}

// routingInputs renders the advisory context. Caller holds the lock.
func (c *Controller) routingInputs() (scenarioID, dialogueContext string) {
	scenarioID = ""
	label, difficulty, patternText := "open negotiation", "", "none"
	if c.pattern != nil {
		scenarioID = c.pattern.ID
		label = c.pattern.Label
		difficulty = string(c.pattern.Difficulty)
		patternText = c.pattern.Text
	}
	dialogueContext = fmt.Sprintf(counterpartSystemPrompt,
		scenarioID, label, difficulty, patternText, RenderTranscript(c.transcript))
	return scenarioID, dialogueContext
}

// degrade enters DEGRADED from LIVE and emits the operator-visible advisory.
func (c *Controller) degrade(reason string) {
	c.mu.Lock()
	if c.state != StateLive {
		c.mu.Unlock()
		return
	}
	c.state = StateDegraded
	c.degradedReason = reason
	c.mu.Unlock()

	c.logger.Warn("session degraded — switching to simulation mode", "reason", reason)
	if c.notifier != nil {
		c.notifier.NotifyDegraded(reason)
	}
}

// RenderTranscript formats a transcript as time-ordered lines for prompts.
func RenderTranscript(transcript []DialogueMessage) string {
	if len(transcript) == 0 {
		return "(no dialogue yet)"
	}
	var b strings.Builder
	for _, m := range transcript {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Origin, m.Text)
	}
	return b.String()
}

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
