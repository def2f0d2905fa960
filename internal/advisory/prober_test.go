package advisory

import (
	"context"
	"testing"
	"time"
)

func TestProber_RecordsReadingAndStopsCleanly(t *testing.T) {
	remote := &fakeRemote{reply: "pong"}
	c := New(remote, NewBreaker(3, time.Minute), 3, time.Second, discardLogger())
	p := NewProber(c, time.Millisecond, discardLogger())

	if got := p.LastLatency(); got != -1 {
		t.Fatalf("LastLatency before start = %d, want -1", got)
	}

	p.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for p.LastLatency() < 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.LastLatency(); got < 0 {
		t.Fatalf("LastLatency = %d, want a recorded reading", got)
	}

	// Stop must return even when called concurrently, and leave no probe
	// goroutine running.
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	p.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent Stop did not return")
	}

	callsAfterStop := remote.calls
	time.Sleep(10 * time.Millisecond)
	if remote.calls != callsAfterStop {
		t.Errorf("remote calls grew from %d to %d after Stop", callsAfterStop, remote.calls)
	}
}

func TestProber_FailedProbeYieldsNegativeReading(t *testing.T) {
	remote := &fakeRemote{alwaysErr: true}
	c := New(remote, NewBreaker(3, time.Minute), 3, time.Second, discardLogger())
	p := NewProber(c, time.Millisecond, discardLogger())

	p.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	// Stop has joined the probe goroutine, so the counter is settled.
	if remote.calls == 0 {
		t.Fatal("probe loop never fired")
	}
	if got := p.LastLatency(); got != -1 {
		t.Errorf("LastLatency = %d, want -1 after failed probe", got)
	}
}
