package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityNone   Severity = "None"
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ParseSeverity normalizes classifier output to the closed enum. Unknown
// non-empty values map to Medium so an exotic answer neither disappears nor
// trips the cooldown on its own.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return SeverityNone
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

type FrameRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

type MotionScore struct {
	Index     int     `json:"index"`
	Magnitude float64 `json:"magnitude"`
}

type AnomalyResult struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"score"`
}

type EventKind string

const (
	EventNone      EventKind = "NONE"
	EventMotion    EventKind = "MOTION"
	EventCollision EventKind = "COLLISION"
	EventFall      EventKind = "FALL"
)

type ClassificationDecision struct {
	Flag     bool     `json:"flag"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

type Alert struct {
	ID           uuid.UUID `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Severity     Severity  `json:"severity"`
	Reason       string    `json:"reason"`
	AnomalyScore float64   `json:"anomaly_score"`
	SampleFrame  FrameRef  `json:"sample_frame"`
}

type CooldownState struct {
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Duration  string    `json:"duration"`
}

type AnalysisStatus string

const (
	StatusOK         AnalysisStatus = "ok"
	StatusNoAnomaly  AnalysisStatus = "no_anomaly"
	StatusSuppressed AnalysisStatus = "suppressed"
)

type AnalysisReport struct {
	Status         AnalysisStatus         `json:"status"`
	FramesAnalyzed int                    `json:"frames_analyzed"`
	Anomaly        AnomalyResult          `json:"anomaly"`
	Decision       ClassificationDecision `json:"decision"`
	Alert          *Alert                 `json:"alert,omitempty"`
	CooldownActive bool                   `json:"cooldown_active"`
}

// TrackSample is one observation of a tracked object, for hosts that run an
// object tracker in front of the pipeline instead of raw frame scoring.
type TrackSample struct {
	ObjectID  int     `json:"object_id"`
	Timestamp float64 `json:"timestamp"`
	CX        float64 `json:"cx"`
	CY        float64 `json:"cy"`
	Speed     float64 `json:"speed"`
}
