package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parleyworks/parley/internal/session"
	"github.com/parleyworks/parley/internal/telemetry"
)

// Grade is the overall session grade. S is reserved for flawless runs.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeF Grade = "F"
)

var validGrades = map[Grade]bool{
	GradeS: true, GradeA: true, GradeB: true, GradeC: true, GradeF: true,
}

// AdvisoryReport is the post-session coaching report. It is created whole or
// not at all: a partially populated report risks actively misleading the
// operator, so validation failures abort generation.
type AdvisoryReport struct {
	Strengths                     []string `json:"strengths"`
	MissedOpportunities           []string `json:"missed_opportunities"`
	TacticsDetected               []string `json:"tactics_detected"`
	ConfidenceTrajectoryNarrative string   `json:"confidence_trajectory_narrative"`
	Recommendations               []string `json:"recommendations"`
	Grade                         Grade    `json:"grade"`
}

// Validate checks field presence and enum membership. A nil slice means the
// field was absent from the payload; an empty one was present and is fine.
func (r *AdvisoryReport) Validate() error {
	if !validGrades[r.Grade] {
		return fmt.Errorf("grade %q not in {S, A, B, C, F}", r.Grade)
	}
	if r.ConfidenceTrajectoryNarrative == "" {
		return fmt.Errorf("confidence_trajectory_narrative is required")
	}
	for name, field := range map[string][]string{
		"strengths":            r.Strengths,
		"missed_opportunities": r.MissedOpportunities,
		"tactics_detected":     r.TacticsDetected,
		"recommendations":      r.Recommendations,
	} {
		if field == nil {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

// StoredReport wraps a validated report with persistence metadata.
type StoredReport struct {
	ID         uuid.UUID      `json:"id"`
	ScenarioID string         `json:"scenario_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Report     AdvisoryReport `json:"report"`
}

// Requester is the structured advisory request surface.
type Requester interface {
	RequestStructured(ctx context.Context, prompt, dialogueContext string, v any) error
}

// Generator produces session reports through the resilient advisory client.
type Generator struct {
	client Requester
	logger *slog.Logger
}

func NewGenerator(client Requester, logger *slog.Logger) *Generator {
	return &Generator{client: client, logger: logger}
}

// Generate aggregates the metric window and the time-ordered transcript into
// one structured advisory request. Exhausted retries or an invalid payload
// surface as errors; no degraded partial report is ever returned.
func (g *Generator) Generate(ctx context.Context, transcript []session.DialogueMessage, agg telemetry.Aggregates) (*AdvisoryReport, error) {
	prompt := fmt.Sprintf(reportUserPrompt,
		agg.Samples,
		agg.MeanConfidence,
		agg.MeanSentiment,
		agg.MeanAggression,
		agg.MeanClarity,
		agg.MeanLogicDensity,
		agg.MeanDeviation,
		agg.MeanHesitation,
		agg.PeakSpeakingRate,
		agg.PeakIntensity,
		session.RenderTranscript(transcript),
	)

	g.logger.Info("generating advisory report",
		"messages", len(transcript),
		"samples", agg.Samples,
	)

	var rep AdvisoryReport
	if err := g.client.RequestStructured(ctx, prompt, reportSystemPrompt, &rep); err != nil {
		return nil, fmt.Errorf("report generation: %w", err)
	}

	g.logger.Info("advisory report ready", "grade", string(rep.Grade))
	return &rep, nil
}
