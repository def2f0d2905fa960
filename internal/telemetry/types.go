package telemetry

import "time"

// DifficultyTier grades how adversarial a target pattern's scenario is.
type DifficultyTier string

const (
	TierStandard        DifficultyTier = "STANDARD"
	TierHighYield       DifficultyTier = "HIGH_YIELD"
	TierHostileTakeover DifficultyTier = "HOSTILE_TAKEOVER"
)

// TargetPattern is the rhetorical pattern the operator is coached toward.
// Read-only for the duration of one session; swapping it is a session boundary.
type TargetPattern struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Text       string         `json:"text"`
	Difficulty DifficultyTier `json:"difficulty"`
}

// MetricSample is one telemetry point, produced per message or acoustic tick.
// Never mutated after creation.
type MetricSample struct {
	Timestamp         time.Time `json:"timestamp"`
	SpeakingRate      float64   `json:"speaking_rate"`      // words per second
	HesitationCount   int       `json:"hesitation_count"`
	PatternDeviation  float64   `json:"pattern_deviation"`  // >= 0, 0 = exact match
	AcousticIntensity float64   `json:"acoustic_intensity"` // >= 0
	SentimentValence  float64   `json:"sentiment_valence"`  // [-1, 1]
	Confidence        float64   `json:"confidence"`         // [0, 1]
	LogicDensity      float64   `json:"logic_density"`      // [0, 1]
	AggressionIndex   float64   `json:"aggression_index"`   // [0, 1]
	ClarityScore      float64   `json:"clarity_score"`      // [0, 1]
}

// Fragment is a timestamped transcript fragment, used for trailing-window
// speaking-rate and silence-gap computation.
type Fragment struct {
	Text string
	At   time.Time
}

// Aggregates are the mean/peak statistics over a metric window,
// consumed by report generation. The zero value is the defined
// result for an empty window.
type Aggregates struct {
	Samples          int     `json:"samples"`
	MeanConfidence   float64 `json:"mean_confidence"`
	MeanSentiment    float64 `json:"mean_sentiment"`
	MeanAggression   float64 `json:"mean_aggression"`
	MeanClarity      float64 `json:"mean_clarity"`
	MeanLogicDensity float64 `json:"mean_logic_density"`
	MeanDeviation    float64 `json:"mean_deviation"`
	MeanHesitation   float64 `json:"mean_hesitation"`
	PeakSpeakingRate float64 `json:"peak_speaking_rate"`
	PeakIntensity    float64 `json:"peak_intensity"`
}
