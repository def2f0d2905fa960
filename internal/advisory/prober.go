package advisory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Prober runs MeasureLatency on a fixed interval as a background health
// signal, independent of the message path. It never blocks message-path
// requests and shuts down cleanly with Stop.
type Prober struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	last   atomic.Int64
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewProber creates a latency prober. The last reading starts at -1 (unknown).
func NewProber(client *Client, interval time.Duration, logger *slog.Logger) *Prober {
	p := &Prober{
		client:   client,
		interval: interval,
		logger:   logger,
	}
	p.last.Store(-1)
	return p
}

// Start launches the probe loop. The loop ends when ctx is cancelled or Stop
// is called.
func (p *Prober) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop cancels the probe loop and waits for it to exit. Safe to call more
// than once.
func (p *Prober) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}

// LastLatency returns the most recent probe reading in milliseconds,
// or -1 if the last probe failed or none has completed yet.
func (p *Prober) LastLatency() int64 {
	return p.last.Load()
}

func (p *Prober) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ms := p.client.MeasureLatency(ctx)
			p.last.Store(ms)
			if ms < 0 {
				p.logger.Warn("latency probe failed")
			} else {
				p.logger.Debug("latency probe", "millis", ms)
			}
		}
	}
}
