package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyworks/parley/internal/scenario"
	"github.com/parleyworks/parley/internal/session"
)

// offlineSim satisfies session.Simulator without the full library.
type offlineSim struct{}

func (offlineSim) SimulateOffline(_, _ string) string { return "scripted reply" }

func newTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := session.NewController(nil, offlineSim{}, 16, 0, logger)
	return NewServer(0, Deps{
		Controller: ctrl,
		Library:    scenario.NewLibrary(),
	})
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.Background())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatus_ReportsState(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/v1/parley/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["state"] != "DISCONNECTED" {
		t.Errorf("state = %v, want DISCONNECTED", got["state"])
	}
}

func TestSelectScenario(t *testing.T) {
	s := newTestServer()

	rec := doRequest(t, s, http.MethodPost, "/api/v1/parley/scenarios/HOSTILE_TAKEOVER-03/select", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/parley/scenarios/NOPE-99/select", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown scenario status = %d, want 404", rec.Code)
	}
}

func TestPostMessage_OfflinePath(t *testing.T) {
	s := newTestServer()
	doRequest(t, s, http.MethodPost, "/api/v1/parley/scenarios/STANDARD-01/select", "")

	rec := doRequest(t, s, http.MethodPost, "/api/v1/parley/messages", `{"text":"my opening offer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var reply session.DialogueMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Origin != session.OriginSyntheticAgent {
		t.Errorf("origin = %s, want SYNTHETIC_AGENT", reply.Origin)
	}

	// The message path fed the metric window too.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/parley/metrics", "")
	var metrics struct {
		Samples []json.RawMessage `json:"samples"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &metrics); err != nil {
		t.Fatal(err)
	}
	if len(metrics.Samples) != 1 {
		t.Errorf("samples = %d, want 1", len(metrics.Samples))
	}
}

func TestPostMessage_Validation(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"empty text", `{"text":""}`},
		{"malformed json", `{"text":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/parley/messages", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestConnect_WithoutLiveChannel(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/v1/parley/connect", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when no advisory channel is wired", rec.Code)
	}
}

func TestGenerateReport_WithoutGenerator(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/v1/parley/report", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestListReports_WithoutStore(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/v1/parley/reports", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestScenarioSwitchResetsMetrics(t *testing.T) {
	s := newTestServer()
	doRequest(t, s, http.MethodPost, "/api/v1/parley/scenarios/STANDARD-01/select", "")
	doRequest(t, s, http.MethodPost, "/api/v1/parley/messages", `{"text":"round one"}`)
	doRequest(t, s, http.MethodPost, "/api/v1/parley/scenarios/HIGH_YIELD-01/select", "")

	rec := doRequest(t, s, http.MethodGet, "/api/v1/parley/transcript", "")
	var transcript []session.DialogueMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &transcript); err != nil {
		t.Fatal(err)
	}
	if len(transcript) != 0 {
		t.Errorf("transcript after switch = %d messages, want 0", len(transcript))
	}
}
