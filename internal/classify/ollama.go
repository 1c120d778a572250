package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sentryvision/internal/model"
)

// Ollama classifies via a local or remote Ollama /api/generate endpoint.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

func NewOllama(url, modelName string, client *http.Client) *Ollama {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if modelName == "" {
		modelName = "llama3"
	}
	return &Ollama{url: strings.TrimRight(url, "/"), model: modelName, client: client}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Classify(ctx context.Context, ev EventContext, score float64) model.ClassificationDecision {
	body, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: buildPrompt(ev, score),
		Stream: false,
	})
	if err != nil {
		return Fallback("request encode failed: " + err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Fallback("request build failed: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Fallback("llm inference failed: " + err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fallback("llm response read failed: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return Fallback(fmt.Sprintf("llm returned status %d", resp.StatusCode))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fallback("llm response was not JSON")
	}
	var decision model.ClassificationDecision
	if err := ExtractJSONObject(parsed.Response, &decision); err != nil {
		return Fallback("model response could not be parsed")
	}
	return normalizeDecision(decision)
}

func buildPrompt(ev EventContext, score float64) string {
	ctxJSON, _ := json.Marshal(ev)
	return fmt.Sprintf(`You are an AI-powered incident classification system used for CCTV surveillance.

An anomaly has been detected.

Anomaly score (0-1): %.3f

Event context:
%s

Your task:
1. Decide whether this event represents a real-world safety or security incident.
2. Classify severity as:
   - Low: normal activity or insignificant motion
   - Medium: unusual but non-critical event
   - High: accidents, crashes, falls, or situations requiring immediate response
3. Provide a concise reason.

IMPORTANT RULES:
- Vehicle collisions, sudden stops, crashes, or falls are HIGH severity.
- Minor motion variations are LOW.
- Output ONLY valid JSON.
- Do NOT include explanations outside JSON.

Required JSON format:
{"flag": true | false, "severity": "Low" | "Medium" | "High", "reason": "one short sentence"}`,
		score, ctxJSON)
}
