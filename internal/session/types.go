package session

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies who produced a dialogue message.
type Origin string

const (
	OriginOperator       Origin = "OPERATOR"
	OriginSyntheticAgent Origin = "SYNTHETIC_AGENT"
)

// DialogueMessage is one immutable entry in the append-only transcript.
type DialogueMessage struct {
	ID        uuid.UUID `json:"id"`
	Origin    Origin    `json:"origin"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionState is the session-wide mode driving message routing.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateLive         ConnectionState = "LIVE"
	StateDegraded     ConnectionState = "DEGRADED"
)

// Status is the externally visible connection state plus the degradation
// reason when the state is DEGRADED.
type Status struct {
	State          ConnectionState `json:"state"`
	DegradedReason string          `json:"degraded_reason,omitempty"`
}

// EventKind tags an ingest queue entry from the live channel.
type EventKind string

const (
	EventTranscript   EventKind = "transcript"
	EventIntensity    EventKind = "intensity"
	EventChannelError EventKind = "channel_error"
)

// Event is one live-channel occurrence, queued in arrival order.
type Event struct {
	Kind    EventKind
	Text    string
	IsFinal bool
	Flux    float64
	Marker  string
	At      time.Time
}

// BreakerOpenMarker is the machine-readable connection-error marker that
// forces the LIVE → DEGRADED transition.
const BreakerOpenMarker = "breaker_open"
