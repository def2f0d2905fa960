package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parleyworks/parley/internal/report"
	"github.com/parleyworks/parley/internal/telemetry"
)

// SessionSummary captures the window aggregates alongside a stored report.
// Dialogue text itself is never persisted; only the coaching artifact and
// its telemetry rollup survive the session.
type SessionSummary struct {
	ScenarioID string               `json:"scenario_id"`
	Messages   int                  `json:"messages"`
	Aggregates telemetry.Aggregates `json:"aggregates"`
}

// WriteReport persists a validated advisory report with its session summary.
func (s *Store) WriteReport(ctx context.Context, rep report.AdvisoryReport, summary SessionSummary) (uuid.UUID, error) {
	id := uuid.New()

	repJSON, err := json.Marshal(rep)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal report: %w", err)
	}
	aggJSON, err := json.Marshal(summary.Aggregates)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal aggregates: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO advisory_reports (id, scenario_id, grade, message_count, report, aggregates, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, summary.ScenarioID, string(rep.Grade), summary.Messages, repJSON, aggJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// RecentReports lists the latest stored reports, newest first.
func (s *Store) RecentReports(ctx context.Context, limit int) ([]report.StoredReport, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, scenario_id, report, created_at
		FROM advisory_reports
		ORDER BY created_at DESC
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []report.StoredReport
	for rows.Next() {
		var (
			stored  report.StoredReport
			repJSON []byte
			created time.Time
		)
		if err := rows.Scan(&stored.ID, &stored.ScenarioID, &repJSON, &created); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if err := json.Unmarshal(repJSON, &stored.Report); err != nil {
			return nil, fmt.Errorf("unmarshal stored report %s: %w", stored.ID, err)
		}
		stored.CreatedAt = created
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return out, nil
}
