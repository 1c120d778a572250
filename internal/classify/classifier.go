package classify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sentryvision/internal/config"
	"sentryvision/internal/model"
)

// EventContext is the compact event description sent to the classifier.
// It never carries frame pixel data; the request stays small and the backend
// stays swappable.
type EventContext struct {
	Signal         string          `json:"signal"`
	Kind           model.EventKind `json:"kind"`
	MaxMagnitude   float64         `json:"max_magnitude"`
	FramesAnalyzed int             `json:"frames_analyzed"`
}

// Classifier is total: it always returns a decision and never an error.
// Timeouts, transport failures and unparseable bodies all degrade to a safe
// non-flagged fallback with a diagnostic reason. Retries are deliberately not
// performed; a stale high-severity answer after the clip context has moved on
// is worse than a miss the next clip can re-raise.
type Classifier interface {
	Classify(ctx context.Context, ev EventContext, score float64) model.ClassificationDecision
}

func Fallback(reason string) model.ClassificationDecision {
	if reason == "" {
		reason = "classification unavailable"
	}
	return model.ClassificationDecision{Flag: false, Severity: model.SeverityLow, Reason: reason}
}

// New builds the configured backend. Backend "none" yields a classifier that
// flags nothing, for hosts that only want statistical detection.
func New(cfg config.ClassifierConfig) (Classifier, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Backend {
	case "ollama":
		return NewOllama(cfg.Ollama.URL, cfg.Ollama.Model, client), nil
	case "azure_openai":
		return NewAzureOpenAI(cfg.AzureAI.Endpoint, cfg.AzureAI.Deployment, cfg.AzureAI.APIKey, client), nil
	case "none":
		return noopClassifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported classifier backend: %q", cfg.Backend)
	}
}

type noopClassifier struct{}

func (noopClassifier) Classify(context.Context, EventContext, float64) model.ClassificationDecision {
	return model.ClassificationDecision{Flag: false, Severity: model.SeverityNone, Reason: "classification disabled"}
}

// normalizeDecision enforces the closed severity enum and a non-empty reason
// on whatever the backend parsed out of the model's reply.
func normalizeDecision(d model.ClassificationDecision) model.ClassificationDecision {
	d.Severity = model.ParseSeverity(string(d.Severity))
	if d.Reason == "" {
		d.Reason = "no reason given by classifier"
	}
	return d
}

const defaultTimeout = 30 * time.Second
