package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sentryvision/internal/alerts"
	"sentryvision/internal/config"
	"sentryvision/internal/model"
)

type stubAnalyzer struct {
	report model.AnalysisReport
	state  model.CooldownState
	resets int
}

func (a *stubAnalyzer) Analyze(context.Context, []model.FrameRef) (model.AnalysisReport, error) {
	return a.report, nil
}

func (a *stubAnalyzer) Cooldown() model.CooldownState { return a.state }

func (a *stubAnalyzer) ResetCooldown() {
	a.resets++
	a.state = model.CooldownState{Active: false}
}

type stubExtractor struct {
	refs []model.FrameRef
}

func (e stubExtractor) Extract(context.Context, string, float64, int) ([]model.FrameRef, error) {
	return e.refs, nil
}

func newTestServer(t *testing.T, analyzer *stubAnalyzer) *Server {
	t.Helper()
	store, err := alerts.NewStore(filepath.Join(t.TempDir(), "alerts.json"), 100, nil)
	if err != nil {
		t.Fatalf("alert store: %v", err)
	}
	return &Server{
		cfg:       config.NewStaticManager(config.DefaultConfig()),
		analyzer:  analyzer,
		extractor: stubExtractor{refs: []model.FrameRef{{Index: 0, Path: "f.jpg"}, {Index: 1, Path: "g.jpg"}}},
		alerts:    store,
		logger:    nil,
		version:   "test",
		started:   time.Now().UTC(),
	}
}

func TestAnalyzeRequiresVideoPath(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{})
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.handleAnalyze(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyzeReturnsReport(t *testing.T) {
	analyzer := &stubAnalyzer{report: model.AnalysisReport{
		Status:         model.StatusNoAnomaly,
		FramesAnalyzed: 2,
	}}
	s := newTestServer(t, analyzer)
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"video_path": "clip.mp4"}`))
	rec := httptest.NewRecorder()
	s.handleAnalyze(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report model.AnalysisReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != model.StatusNoAnomaly || report.FramesAnalyzed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestAnalyzeRejectsGet(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rec := httptest.NewRecorder()
	s.handleAnalyze(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCooldownEndpoints(t *testing.T) {
	analyzer := &stubAnalyzer{state: model.CooldownState{Active: true, StartedAt: time.Now().UTC(), Duration: "5m0s"}}
	s := newTestServer(t, analyzer)

	rec := httptest.NewRecorder()
	s.handleCooldown(rec, httptest.NewRequest(http.MethodGet, "/cooldown", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var state model.CooldownState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.Active {
		t.Fatalf("expected active cooldown state")
	}

	rec = httptest.NewRecorder()
	s.handleCooldownReset(rec, httptest.NewRequest(http.MethodPost, "/cooldown/reset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if analyzer.resets != 1 {
		t.Fatalf("expected one reset, got %d", analyzer.resets)
	}

	rec = httptest.NewRecorder()
	s.handleCooldownReset(rec, httptest.NewRequest(http.MethodGet, "/cooldown/reset", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("reset must require POST, got %d", rec.Code)
	}
}

func TestAlertsList(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Alerts []model.Alert `json:"alerts"`
		Count  int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 0 {
		t.Fatalf("expected empty list, got %d", payload.Count)
	}
}

func TestAlertsBadSince(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{})
	rec := httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", rec.Code)
	}
}
