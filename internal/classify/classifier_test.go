package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sentryvision/internal/model"
)

func ollamaServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
}

func testContext() EventContext {
	return EventContext{Signal: "motion anomaly", Kind: model.EventMotion, MaxMagnitude: 42.5, FramesAnalyzed: 12}
}

func TestOllamaParsesDecisionWithTrailingProse(t *testing.T) {
	srv := ollamaServer(t, `Here is my assessment:
{"flag": true, "severity": "High", "reason": "vehicle collision"}
Stay safe!`)
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.9)
	if !d.Flag || d.Severity != model.SeverityHigh || d.Reason != "vehicle collision" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestOllamaUnparseableFallsBack(t *testing.T) {
	srv := ollamaServer(t, "I cannot answer in the requested format.")
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.9)
	if d.Flag {
		t.Fatalf("fallback decision must not flag: %+v", d)
	}
	if d.Reason == "" {
		t.Fatalf("fallback reason must be non-empty")
	}
}

func TestOllamaUnknownSeverityNormalizedToMedium(t *testing.T) {
	srv := ollamaServer(t, `{"flag": true, "severity": "Catastrophic", "reason": "chaos"}`)
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.7)
	if d.Severity != model.SeverityMedium {
		t.Fatalf("expected Medium for unknown severity, got %s", d.Severity)
	}
}

func TestOllamaTransportErrorFallsBack(t *testing.T) {
	srv := ollamaServer(t, "{}")
	srv.Close()

	c := NewOllama(srv.URL, "llama3", nil)
	d := c.Classify(context.Background(), testContext(), 0.8)
	if d.Flag || d.Reason == "" {
		t.Fatalf("expected non-flag fallback with reason, got %+v", d)
	}
}

func TestOllamaServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.8)
	if d.Flag {
		t.Fatalf("expected non-flag fallback, got %+v", d)
	}
}

func TestAzureOpenAIParsesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]string{
				{"text": `{"flag": true, "severity": "Low", "reason": "minor scuffle"}`},
			},
		})
	}))
	defer srv.Close()

	c := NewAzureOpenAI(srv.URL, "gpt-test", "secret", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.65)
	if !d.Flag || d.Severity != model.SeverityLow || d.Reason != "minor scuffle" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestAzureOpenAIEmptyChoicesFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := NewAzureOpenAI(srv.URL, "gpt-test", "secret", srv.Client())
	d := c.Classify(context.Background(), testContext(), 0.65)
	if d.Flag {
		t.Fatalf("expected fallback, got %+v", d)
	}
}

func TestNoopClassifier(t *testing.T) {
	c, err := New(configWithBackend("none"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := c.Classify(context.Background(), testContext(), 1)
	if d.Flag || d.Severity != model.SeverityNone {
		t.Fatalf("noop classifier must not flag: %+v", d)
	}
}

func TestUnsupportedBackend(t *testing.T) {
	if _, err := New(configWithBackend("carrier-pigeon")); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}
