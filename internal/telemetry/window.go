package telemetry

// Window is a bounded, order-preserving buffer of the most recent metric
// samples. Eviction is FIFO: once capacity is reached, each push drops the
// oldest sample. Not safe for concurrent use; the session's message path is
// the only writer.
type Window struct {
	capacity int
	samples  []MetricSample
}

// NewWindow creates a window retaining at most capacity samples.
// A non-positive capacity falls back to 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Push appends a sample, evicting the oldest entry if the window is full.
func (w *Window) Push(sample MetricSample) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = sample
		return
	}
	w.samples = append(w.samples, sample)
}

// Len returns the current number of retained samples.
func (w *Window) Len() int {
	return len(w.samples)
}

// Capacity returns the retention bound K.
func (w *Window) Capacity() int {
	return w.capacity
}

// Snapshot returns the retained samples in insertion order.
// The returned slice is a copy; mutating it does not affect the window.
func (w *Window) Snapshot() []MetricSample {
	out := make([]MetricSample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Reset drops all retained samples. Used at session boundaries.
func (w *Window) Reset() {
	w.samples = w.samples[:0]
}

// Aggregate computes mean/peak statistics over the retained samples.
// An empty window yields the zero Aggregates value so report generation
// stays total.
func (w *Window) Aggregate() Aggregates {
	var agg Aggregates
	if len(w.samples) == 0 {
		return agg
	}

	n := float64(len(w.samples))
	agg.Samples = len(w.samples)
	for _, s := range w.samples {
		agg.MeanConfidence += s.Confidence / n
		agg.MeanSentiment += s.SentimentValence / n
		agg.MeanAggression += s.AggressionIndex / n
		agg.MeanClarity += s.ClarityScore / n
		agg.MeanLogicDensity += s.LogicDensity / n
		agg.MeanDeviation += s.PatternDeviation / n
		agg.MeanHesitation += float64(s.HesitationCount) / n
		if s.SpeakingRate > agg.PeakSpeakingRate {
			agg.PeakSpeakingRate = s.SpeakingRate
		}
		if s.AcousticIntensity > agg.PeakIntensity {
			agg.PeakIntensity = s.AcousticIntensity
		}
	}
	return agg
}
