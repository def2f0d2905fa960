package session

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/parleyworks/parley/internal/advisory"
	"github.com/parleyworks/parley/internal/telemetry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdvisor scripts the live channel's behavior.
type fakeAdvisor struct {
	calls       int
	reply       string
	breakerOpen bool
}

func (f *fakeAdvisor) Request(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.breakerOpen {
		return "", advisory.ErrBreakerOpen
	}
	return f.reply, nil
}

// fakeSim records how the offline simulator was invoked.
type fakeSim struct {
	calls      int
	scenarioID string
	input      string
}

func (f *fakeSim) SimulateOffline(scenarioID, inputText string) string {
	f.calls++
	f.scenarioID = scenarioID
	f.input = inputText
	return "scripted counter-move"
}

type fakeNotifier struct {
	reasons []string
}

func (f *fakeNotifier) NotifyDegraded(reason string) {
	f.reasons = append(f.reasons, reason)
}

// fakeTransport reports dial progress alongside degraded advisories.
type fakeTransport struct {
	fakeNotifier
	ready bool
}

func (f *fakeTransport) Ready() bool { return f.ready }

func newTestController(advisor Responder, sim Simulator, opts ...Option) *Controller {
	c := NewController(advisor, sim, 16, 1500*time.Millisecond, discardLogger(), opts...)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

var hostilePattern = telemetry.TargetPattern{
	ID:         "HOSTILE_TAKEOVER-03",
	Label:      "Anchored refusal",
	Text:       "I refuse your terms and I am prepared to walk away",
	Difficulty: telemetry.TierHostileTakeover,
}

func TestController_InitialStateIsDisconnected(t *testing.T) {
	c := newTestController(&fakeAdvisor{}, &fakeSim{})
	if st := c.Status(); st.State != StateDisconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", st.State)
	}
}

func TestController_ConnectWithoutAdvisorFails(t *testing.T) {
	c := newTestController(nil, &fakeSim{})
	if err := c.Connect(); err == nil {
		t.Fatal("Connect with no advisor should fail")
	}
	// Offline-only mode still serves messages.
	sim := &fakeSim{}
	c = newTestController(nil, sim)
	c.SetPattern(hostilePattern)
	if _, err := c.HandleOperatorMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("offline-only message failed: %v", err)
	}
	if sim.calls != 1 {
		t.Errorf("simulator calls = %d, want 1", sim.calls)
	}
}

func TestController_ConnectingUntilChannelConfirms(t *testing.T) {
	advisor := &fakeAdvisor{reply: "noted"}
	transport := &fakeTransport{}
	c := newTestController(advisor, &fakeSim{}, WithNotifier(transport))
	c.SetPattern(hostilePattern)

	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); st.State != StateConnecting {
		t.Fatalf("state = %s, want CONNECTING while transport dials", st.State)
	}

	// The advisory endpoint is reachable before the event channel settles.
	if _, err := c.HandleOperatorMessage(context.Background(), "opening offer"); err != nil {
		t.Fatal(err)
	}
	if advisor.calls != 1 {
		t.Errorf("advisor calls = %d, want 1", advisor.calls)
	}

	c.Apply(context.Background(), Event{Kind: EventTranscript, Text: "counter", IsFinal: false})
	if st := c.Status(); st.State != StateLive {
		t.Errorf("state = %s, want LIVE after first delivered event", st.State)
	}
}

func TestController_ConnectWithReadyTransportGoesLive(t *testing.T) {
	transport := &fakeTransport{ready: true}
	c := newTestController(&fakeAdvisor{}, &fakeSim{}, WithNotifier(transport))
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	if st := c.Status(); st.State != StateLive {
		t.Errorf("state = %s, want LIVE", st.State)
	}
}

func TestController_LiveRoutesToAdvisor(t *testing.T) {
	advisor := &fakeAdvisor{reply: "live counter-move"}
	sim := &fakeSim{}
	c := newTestController(advisor, sim)
	c.SetPattern(hostilePattern)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	reply, err := c.HandleOperatorMessage(context.Background(), "my opening offer")
	if err != nil {
		t.Fatal(err)
	}
	if reply.Text != "live counter-move" {
		t.Errorf("reply = %q, want live counter-move", reply.Text)
	}
	if reply.Origin != OriginSyntheticAgent {
		t.Errorf("reply origin = %s, want SYNTHETIC_AGENT", reply.Origin)
	}
	if advisor.calls != 1 || sim.calls != 0 {
		t.Errorf("advisor calls = %d, sim calls = %d; want 1, 0", advisor.calls, sim.calls)
	}
}

func TestController_BreakerOpenDegradesAndFallsBack(t *testing.T) {
	advisor := &fakeAdvisor{breakerOpen: true}
	sim := &fakeSim{}
	notifier := &fakeNotifier{}
	c := newTestController(advisor, sim, WithNotifier(notifier))
	c.SetPattern(hostilePattern)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	reply, err := c.HandleOperatorMessage(context.Background(), "I need an answer")
	if err != nil {
		t.Fatalf("breaker-open must degrade, not fail: %v", err)
	}
	if reply.Text != "scripted counter-move" {
		t.Errorf("reply = %q, want simulator fallback", reply.Text)
	}
	if st := c.Status(); st.State != StateDegraded || st.DegradedReason == "" {
		t.Errorf("status = %+v, want DEGRADED with reason", st)
	}
	if len(notifier.reasons) != 1 {
		t.Errorf("notifier calls = %d, want 1 operator-visible advisory", len(notifier.reasons))
	}

	// Next message routes straight to the simulator without touching the advisor.
	if _, err := c.HandleOperatorMessage(context.Background(), "still there?"); err != nil {
		t.Fatal(err)
	}
	if advisor.calls != 1 {
		t.Errorf("advisor calls = %d, want 1 (degraded sessions stay offline)", advisor.calls)
	}
	if sim.calls != 2 {
		t.Errorf("sim calls = %d, want 2", sim.calls)
	}
}

func TestController_SetPatternResetsSession(t *testing.T) {
	sim := &fakeSim{}
	c := newTestController(nil, sim)
	c.SetPattern(hostilePattern)

	for i := 0; i < 5; i++ {
		if _, err := c.HandleOperatorMessage(context.Background(), "offer round"); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.Transcript()) == 0 || len(c.MetricsSnapshot()) == 0 {
		t.Fatal("session should have accumulated state")
	}

	c.SetPattern(telemetry.TargetPattern{ID: "STANDARD-01", Text: "fresh start"})
	if got := len(c.Transcript()); got != 0 {
		t.Errorf("transcript length after pattern switch = %d, want 0", got)
	}
	if got := len(c.MetricsSnapshot()); got != 0 {
		t.Errorf("metric window length after pattern switch = %d, want 0", got)
	}
}

func TestController_EndToEndOfflineScenario(t *testing.T) {
	// Scenario HOSTILE_TAKEOVER-03 selected, transcript empty, live channel
	// unavailable: the simulator receives the exact text and scenario id,
	// the reply lands with origin SYNTHETIC_AGENT, and the metric sample
	// reflects the user message rather than the synthetic reply.
	sim := &fakeSim{}
	c := newTestController(nil, sim)
	c.SetPattern(hostilePattern)

	if _, err := c.HandleOperatorMessage(context.Background(), "I refuse your terms"); err != nil {
		t.Fatal(err)
	}

	if sim.scenarioID != "HOSTILE_TAKEOVER-03" {
		t.Errorf("simulator scenario = %q, want HOSTILE_TAKEOVER-03", sim.scenarioID)
	}
	if sim.input != "I refuse your terms" {
		t.Errorf("simulator input = %q, want the exact user text", sim.input)
	}

	transcript := c.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Origin != OriginOperator || transcript[1].Origin != OriginSyntheticAgent {
		t.Errorf("transcript origins = %s, %s; want OPERATOR then SYNTHETIC_AGENT", transcript[0].Origin, transcript[1].Origin)
	}

	samples := c.MetricsSnapshot()
	if len(samples) != 1 {
		t.Fatalf("metric samples = %d, want 1 (user message only)", len(samples))
	}
	// "I refuse your terms" is a prefix of the target pattern, so deviation
	// is well below a full mismatch but not zero.
	if samples[0].PatternDeviation <= 0 || samples[0].PatternDeviation >= 1 {
		t.Errorf("PatternDeviation = %f, want in (0, 1)", samples[0].PatternDeviation)
	}
}

func TestController_DisconnectDiscardsSeveredEvents(t *testing.T) {
	advisor := &fakeAdvisor{reply: "late reply"}
	c := newTestController(advisor, &fakeSim{})
	c.SetPattern(hostilePattern)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	c.Disconnect()

	c.Apply(context.Background(), Event{Kind: EventTranscript, Text: "stale final", IsFinal: true})
	c.Apply(context.Background(), Event{Kind: EventIntensity, Flux: 0.8})

	if got := len(c.Transcript()); got != 0 {
		t.Errorf("transcript after severed events = %d messages, want 0", got)
	}
	if advisor.calls != 0 {
		t.Errorf("advisor calls = %d, want 0", advisor.calls)
	}
}

func TestController_ChannelErrorMarkerDegrades(t *testing.T) {
	c := newTestController(&fakeAdvisor{}, &fakeSim{})
	c.SetPattern(hostilePattern)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	c.Apply(context.Background(), Event{Kind: EventChannelError, Marker: "upstream: breaker_open"})
	if st := c.Status(); st.State != StateDegraded {
		t.Errorf("state = %s, want DEGRADED", st.State)
	}
}

func TestController_PartialFragmentsAreMeteredNotTranscribed(t *testing.T) {
	c := newTestController(&fakeAdvisor{reply: "ok"}, &fakeSim{})
	c.SetPattern(hostilePattern)
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}

	c.Apply(context.Background(), Event{Kind: EventTranscript, Text: "I was", IsFinal: false})
	c.Apply(context.Background(), Event{Kind: EventTranscript, Text: "I was thinking", IsFinal: false})

	if got := len(c.MetricsSnapshot()); got != 2 {
		t.Errorf("samples = %d, want 2", got)
	}
	if got := len(c.Transcript()); got != 0 {
		t.Errorf("transcript = %d messages, want 0 for partial fragments", got)
	}
}

func TestController_IntensityModulatesNextSample(t *testing.T) {
	c := newTestController(nil, &fakeSim{})
	c.SetPattern(hostilePattern)

	if _, err := c.HandleOperatorMessage(context.Background(), "I demand you refuse this threat"); err != nil {
		t.Fatal(err)
	}
	quiet := c.MetricsSnapshot()[0]

	c.Apply(context.Background(), Event{Kind: EventIntensity, Flux: 2.0})

	// Metric window only resets on pattern switch; re-select to compare cleanly.
	c.SetPattern(hostilePattern)
	if _, err := c.HandleOperatorMessage(context.Background(), "I demand you refuse this threat"); err != nil {
		t.Fatal(err)
	}
	loud := c.MetricsSnapshot()[0]

	if loud.AcousticIntensity <= quiet.AcousticIntensity {
		t.Errorf("loud intensity %f should exceed quiet %f", loud.AcousticIntensity, quiet.AcousticIntensity)
	}
	if loud.Confidence > quiet.Confidence {
		t.Errorf("intensity should dampen confidence: %f > %f", loud.Confidence, quiet.Confidence)
	}
}

func TestController_WeightOverrideDisablesIntensityDrag(t *testing.T) {
	w := telemetry.DefaultWeights()
	w.IntensityConfidenceDrag = 0
	c := newTestController(nil, &fakeSim{}, WithWeights(w))
	c.SetPattern(hostilePattern)

	if _, err := c.HandleOperatorMessage(context.Background(), "I demand you refuse this threat"); err != nil {
		t.Fatal(err)
	}
	quiet := c.MetricsSnapshot()[0]

	c.Apply(context.Background(), Event{Kind: EventIntensity, Flux: 2.0})

	c.SetPattern(hostilePattern)
	if _, err := c.HandleOperatorMessage(context.Background(), "I demand you refuse this threat"); err != nil {
		t.Fatal(err)
	}
	loud := c.MetricsSnapshot()[0]

	if math.Abs(loud.Confidence-quiet.Confidence) > 1e-9 {
		t.Errorf("zero drag should leave confidence unchanged: %f vs %f", loud.Confidence, quiet.Confidence)
	}
}

func TestRenderTranscript(t *testing.T) {
	if got := RenderTranscript(nil); got != "(no dialogue yet)" {
		t.Errorf("empty render = %q", got)
	}

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	out := RenderTranscript([]DialogueMessage{
		{Origin: OriginOperator, Text: "hello", Timestamp: at},
		{Origin: OriginSyntheticAgent, Text: "counter", Timestamp: at.Add(time.Second)},
	})
	want := "[09:30:00] OPERATOR: hello\n[09:30:01] SYNTHETIC_AGENT: counter\n"
	if out != want {
		t.Errorf("render = %q, want %q", out, want)
	}
}
