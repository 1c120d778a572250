package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sentryvision/internal/alerts"
	"sentryvision/internal/config"
	"sentryvision/internal/frames"
	"sentryvision/internal/metrics"
	"sentryvision/internal/model"
)

// Analyzer is the pipeline surface the API needs.
type Analyzer interface {
	Analyze(ctx context.Context, refs []model.FrameRef) (model.AnalysisReport, error)
	Cooldown() model.CooldownState
	ResetCooldown()
}

type Server struct {
	cfg       *config.Manager
	analyzer  Analyzer
	extractor frames.Extractor
	alerts    *alerts.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
	version   string
	started   time.Time
}

type analyzeRequest struct {
	VideoPath  string  `json:"video_path"`
	FPS        float64 `json:"fps,omitempty"`
	MaxSeconds int     `json:"max_seconds,omitempty"`
}

type statusResponse struct {
	Status   string                `json:"status"`
	Time     string                `json:"time"`
	Version  string                `json:"version"`
	Uptime   string                `json:"uptime"`
	Cooldown model.CooldownState   `json:"cooldown"`
	Alerts   int                   `json:"alerts"`
	Analysis config.AnalysisConfig `json:"analysis"`
}

func Start(ctx context.Context, cfg *config.Manager, analyzer Analyzer, extractor frames.Extractor, alertsStore *alerts.Store, m *metrics.Metrics, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:       cfg,
		analyzer:  analyzer,
		extractor: extractor,
		alerts:    alertsStore,
		metrics:   m,
		logger:    logger,
		version:   version,
		started:   time.Now().UTC(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/api/analyze", server.handleAnalyze)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/cooldown", server.handleCooldown)
	mux.HandleFunc("/cooldown/reset", server.handleCooldownReset)
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Version:  s.version,
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Cooldown: s.analyzer.Cooldown(),
		Alerts:   s.alerts.Len(),
		Analysis: cfg.Analysis,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "request too large or unreadable"})
		return
	}
	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil || req.VideoPath == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "video_path required"})
		return
	}
	cfg := s.cfg.Get()
	fps := req.FPS
	if fps <= 0 {
		fps = cfg.Frames.FPS
	}
	maxSeconds := req.MaxSeconds
	if maxSeconds <= 0 {
		maxSeconds = cfg.Frames.MaxSeconds
	}

	refs, err := s.extractor.Extract(r.Context(), req.VideoPath, fps, maxSeconds)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("frame extraction failed", "video", req.VideoPath, "err", err)
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "frame extraction failed"})
		return
	}
	report, err := s.analyzer.Analyze(r.Context(), refs)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("analysis failed", "video", req.VideoPath, "err", err)
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "analysis failed"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Alert
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleCooldown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.Cooldown())
}

func (s *Server) handleCooldownReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.analyzer.ResetCooldown()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cooldown": s.analyzer.Cooldown()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
