package telemetry

import (
	"math"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

// fillerTokens are hesitation markers counted towards HesitationCount.
// wordCutset is the punctuation stripped before any lexicon lookup.
const wordCutset = ".,!?;:'\""

var fillerTokens = map[string]bool{
	"uh": true, "um": true, "er": true, "ah": true,
	"hmm": true, "erm": true, "uhh": true, "umm": true,
}

// hedgeTokens lower the confidence score.
var hedgeTokens = map[string]bool{
	"maybe": true, "perhaps": true, "possibly": true, "probably": true,
	"guess": true, "somewhat": true, "might": true, "kinda": true,
	"sort": true, "hopefully": true,
}

// assertiveTokens raise the confidence score.
var assertiveTokens = map[string]bool{
	"will": true, "must": true, "definitely": true, "certainly": true,
	"absolutely": true, "guarantee": true, "know": true, "insist": true,
	"final": true, "non-negotiable": true,
}

// positiveTokens and negativeTokens drive sentiment valence.
var positiveTokens = map[string]bool{
	"agree": true, "good": true, "great": true, "fair": true, "deal": true,
	"yes": true, "appreciate": true, "thank": true, "thanks": true,
	"happy": true, "glad": true, "win": true, "benefit": true, "value": true,
}

var negativeTokens = map[string]bool{
	"no": true, "never": true, "refuse": true, "bad": true, "unfair": true,
	"insult": true, "reject": true, "walk": true, "waste": true,
	"unacceptable": true, "ridiculous": true, "threat": true, "lose": true,
}

// aggressiveTokens drive the aggression index.
var aggressiveTokens = map[string]bool{
	"demand": true, "refuse": true, "never": true, "must": true,
	"threat": true, "threaten": true, "force": true, "unacceptable": true,
	"insult": true, "final": true, "ultimatum": true, "destroy": true,
	"crush": true, "sue": true,
}

// connectiveTokens drive logic density.
var connectiveTokens = map[string]bool{
	"because": true, "therefore": true, "if": true, "then": true,
	"since": true, "thus": true, "so": true, "given": true,
	"consequently": true, "hence": true, "unless": true, "whereas": true,
}

// Weights tune how acoustic intensity modifies the lexical scores.
type Weights struct {
	// IntensityAggressionGain amplifies aggression per unit of intensity.
	IntensityAggressionGain float64
	// IntensityConfidenceDrag dampens confidence per unit of intensity.
	IntensityConfidenceDrag float64
	// SilenceGap is the inter-fragment gap counted as a hesitation.
	SilenceGap time.Duration
	// RateWindow is the trailing window for speaking-rate computation.
	RateWindow time.Duration
}

// DefaultWeights returns the stock extraction tuning.
func DefaultWeights() Weights {
	return Weights{
		IntensityAggressionGain: 0.3,
		IntensityConfidenceDrag: 0.2,
		SilenceGap:              800 * time.Millisecond,
		RateWindow:              5 * time.Second,
	}
}

// Extract turns one transcript fragment plus its acoustic context into a
// MetricSample. Pure: no side effects, never fails. An empty fragment yields
// a zeroed sample (timestamp only) so telemetry gaps cannot halt the pipeline.
// The caller appends the result to the metric window.
func Extract(fragment string, at time.Time, pattern *TargetPattern, trailing []Fragment, intensity float64, w Weights) MetricSample {
	sample := MetricSample{Timestamp: at}

	norm := normalize(fragment)
	if norm == "" {
		return sample
	}

	intensity = sanitize(intensity)
	if intensity < 0 {
		intensity = 0
	}
	sample.AcousticIntensity = intensity

	words := strings.Fields(norm)
	total := float64(len(words))

	if pattern != nil {
		sample.PatternDeviation = deviation(norm, normalize(pattern.Text))
	}

	sample.SpeakingRate = speakingRate(len(words), at, trailing, w.RateWindow)
	sample.HesitationCount = hesitations(words) + silenceGaps(at, trailing, w.SilenceGap)

	var pos, neg, agg, logic, hedge, assert float64
	for _, word := range words {
		word = strings.Trim(word, wordCutset)
		if positiveTokens[word] {
			pos++
		}
		if negativeTokens[word] {
			neg++
		}
		if aggressiveTokens[word] {
			agg++
		}
		if connectiveTokens[word] {
			logic++
		}
		if hedgeTokens[word] {
			hedge++
		}
		if assertiveTokens[word] {
			assert++
		}
	}

	sample.SentimentValence = clamp((pos-neg)/total*4, -1, 1)
	sample.LogicDensity = clamp(logic/total*4, 0, 1)

	// Intensity amplifies aggression and erodes confidence.
	sample.AggressionIndex = clamp(agg/total*4*(1+w.IntensityAggressionGain*intensity), 0, 1)
	sample.Confidence = clamp(0.5+(assert-hedge)/total*3-w.IntensityConfidenceDrag*intensity, 0, 1)

	filler := float64(hesitations(words))
	sample.ClarityScore = clamp(1-filler/total*2-0.05*float64(stutters(words)), 0, 1)

	return sample.sanitized()
}

// deviation is the canonical normalized edit distance between two
// already-normalized strings: Levenshtein distance over runes divided
// by the longer rune length. Two empty strings deviate by zero.
func deviation(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
}

// speakingRate divides words observed in the trailing window by elapsed
// seconds. Elapsed time shorter than one second is treated as one second
// so a lone fragment still yields a finite rate.
func speakingRate(currentWords int, at time.Time, trailing []Fragment, window time.Duration) float64 {
	if window <= 0 {
		window = 5 * time.Second
	}
	cutoff := at.Add(-window)
	words := currentWords
	earliest := at
	for _, f := range trailing {
		if f.At.Before(cutoff) || f.At.After(at) {
			continue
		}
		words += len(strings.Fields(normalize(f.Text)))
		if f.At.Before(earliest) {
			earliest = f.At
		}
	}
	elapsed := at.Sub(earliest)
	if elapsed < time.Second {
		elapsed = time.Second
	}
	return float64(words) / elapsed.Seconds()
}

// hesitations counts filler tokens and repeated-word stutters.
func hesitations(words []string) int {
	count := 0
	for _, w := range words {
		if fillerTokens[strings.Trim(w, wordCutset)] {
			count++
		}
	}
	return count + stutters(words)
}

// stutters counts immediate word repetitions ("we we should").
func stutters(words []string) int {
	count := 0
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			count++
		}
	}
	return count
}

// silenceGaps counts inter-fragment gaps longer than the threshold,
// using the trailing fragments' acoustic timing when it is available.
func silenceGaps(at time.Time, trailing []Fragment, gap time.Duration) int {
	if gap <= 0 || len(trailing) == 0 {
		return 0
	}
	count := 0
	prev := trailing[0].At
	for _, f := range trailing[1:] {
		if f.At.Sub(prev) > gap {
			count++
		}
		prev = f.At
	}
	if at.Sub(prev) > gap {
		count++
	}
	return count
}

// normalize lowercases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clamp(v, lo, hi float64) float64 {
	v = sanitize(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sanitize maps NaN and infinities to zero rather than letting them propagate.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (m MetricSample) sanitized() MetricSample {
	m.SpeakingRate = sanitize(m.SpeakingRate)
	m.PatternDeviation = sanitize(m.PatternDeviation)
	if m.PatternDeviation < 0 {
		m.PatternDeviation = 0
	}
	m.AcousticIntensity = sanitize(m.AcousticIntensity)
	m.SentimentValence = clamp(m.SentimentValence, -1, 1)
	m.Confidence = clamp(m.Confidence, 0, 1)
	m.LogicDensity = clamp(m.LogicDensity, 0, 1)
	m.AggressionIndex = clamp(m.AggressionIndex, 0, 1)
	m.ClarityScore = clamp(m.ClarityScore, 0, 1)
	return m
}
