package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentryvision/internal/classify"
	"sentryvision/internal/detect"
	"sentryvision/internal/metrics"
	"sentryvision/internal/model"
	"sentryvision/internal/storage"
)

type Scorer interface {
	Score(ctx context.Context, refs []model.FrameRef) ([]model.MotionScore, error)
}

type Detector interface {
	Detect(scores []float64) model.AnomalyResult
}

type Notifier interface {
	Publish(ctx context.Context, alert model.Alert) error
}

type AlertSink interface {
	Append(alert model.Alert) error
}

// Pipeline orchestrates one clip analysis: frame scoring, statistical
// detection, cooldown gating, semantic classification, alert creation.
type Pipeline struct {
	scorer     Scorer
	detector   Detector
	classifier classify.Classifier
	alerts     AlertSink
	gate       *Gate
	store      storage.Store
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// escalation serializes the gate check with the decision that may trip
	// it, so two concurrently-completing calls cannot both pass an Open gate
	// and both raise alerts once one of them has gone High.
	escalation sync.Mutex
}

func NewPipeline(scorer Scorer, detector Detector, classifier classify.Classifier, alerts AlertSink, gate *Gate, store storage.Store, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if m != nil {
		// The gauge follows every gate transition, including sweep and lazy
		// expiry, so it never reads 1 after the window has elapsed.
		gate.OnChange(func(active bool) {
			if active {
				m.CooldownActive.Set(1)
			} else {
				m.CooldownActive.Set(0)
			}
		})
	}
	return &Pipeline{
		scorer:     scorer,
		detector:   detector,
		classifier: classifier,
		alerts:     alerts,
		gate:       gate,
		store:      store,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
	}
}

// Analyze runs the full pipeline over an extracted frame sequence. Degraded
// outcomes (suppressed, no anomaly, classifier failure) are reported in the
// returned status, not as errors; the only error case is a sequence with
// fewer than two readable frames.
func (p *Pipeline) Analyze(ctx context.Context, frames []model.FrameRef) (model.AnalysisReport, error) {
	if p.metrics != nil {
		p.metrics.ClipsAnalyzed.Inc()
	}

	// Motion is still scored while suppressed for potential future audit,
	// but nothing escalates.
	scores, err := p.scorer.Score(ctx, frames)
	if err != nil {
		return model.AnalysisReport{}, err
	}

	report := model.AnalysisReport{
		FramesAnalyzed: len(frames),
		Anomaly:        p.detector.Detect(detect.Magnitudes(scores)),
	}
	if report.Anomaly.IsAnomaly && p.metrics != nil {
		p.metrics.AnomaliesDetected.Inc()
	}

	if p.gate.Active() {
		report.Status = model.StatusSuppressed
		report.CooldownActive = true
		report.Decision = classify.Fallback("suppressed by cooldown")
		if p.metrics != nil {
			p.metrics.Suppressed.Inc()
		}
		return report, nil
	}

	if !report.Anomaly.IsAnomaly {
		report.Status = model.StatusNoAnomaly
		report.Decision = model.ClassificationDecision{
			Flag:     false,
			Severity: model.SeverityNone,
			Reason:   "no anomaly detected",
		}
		return report, nil
	}

	ev := classify.EventContext{
		Signal:         "motion anomaly",
		Kind:           model.EventMotion,
		MaxMagnitude:   maxMagnitude(scores),
		FramesAnalyzed: len(frames),
	}

	p.escalation.Lock()
	defer p.escalation.Unlock()

	// Re-check under the lock: another call may have gone High while this
	// one was scoring.
	if p.gate.Active() {
		report.Status = model.StatusSuppressed
		report.CooldownActive = true
		report.Decision = classify.Fallback("suppressed by cooldown")
		if p.metrics != nil {
			p.metrics.Suppressed.Inc()
		}
		return report, nil
	}

	if p.metrics != nil {
		p.metrics.ClassifierCalls.Inc()
	}
	report.Decision = p.classifier.Classify(ctx, ev, report.Anomaly.Score)
	report.Status = model.StatusOK

	if report.Decision.Flag {
		alert := model.Alert{
			ID:           uuid.New(),
			Timestamp:    time.Now().UTC(),
			Severity:     report.Decision.Severity,
			Reason:       report.Decision.Reason,
			AnomalyScore: report.Anomaly.Score,
			SampleFrame:  frames[len(frames)/2],
		}
		if err := p.alerts.Append(alert); err != nil {
			if p.logger != nil {
				p.logger.Error("alert persist failed", "alert_id", alert.ID, "err", err)
			}
		} else {
			report.Alert = &alert
			if p.metrics != nil {
				p.metrics.AlertsRaised.Inc()
			}
			if p.logger != nil {
				p.logger.Warn("alert raised",
					"alert_id", alert.ID,
					"severity", alert.Severity,
					"score", alert.AnomalyScore,
					"reason", alert.Reason,
				)
			}
			if p.store != nil {
				_ = p.store.SaveAlert(ctx, alert)
			}
			if p.notifier != nil {
				_ = p.notifier.Publish(ctx, alert)
			}
		}
	}

	if report.Decision.Severity == model.SeverityHigh {
		p.gate.Trip()
		report.CooldownActive = true
	}
	return report, nil
}

func (p *Pipeline) Cooldown() model.CooldownState {
	return p.gate.Snapshot()
}

func (p *Pipeline) ResetCooldown() {
	p.gate.Reset()
	if p.logger != nil {
		p.logger.Info("cooldown reset by administrator")
	}
}

func maxMagnitude(scores []model.MotionScore) float64 {
	var max float64
	for _, s := range scores {
		if s.Magnitude > max {
			max = s.Magnitude
		}
	}
	return max
}
