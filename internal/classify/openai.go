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

// AzureOpenAI classifies via an Azure OpenAI completions deployment.
type AzureOpenAI struct {
	endpoint   string
	deployment string
	apiKey     string
	client     *http.Client
}

func NewAzureOpenAI(endpoint, deployment, apiKey string, client *http.Client) *AzureOpenAI {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &AzureOpenAI{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiKey:     apiKey,
		client:     client,
	}
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (a *AzureOpenAI) Classify(ctx context.Context, ev EventContext, score float64) model.ClassificationDecision {
	body, err := json.Marshal(completionRequest{
		Prompt:      buildPrompt(ev, score),
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return Fallback("request encode failed: " + err.Error())
	}
	url := fmt.Sprintf("%s/openai/deployments/%s/completions?api-version=2023-06-01-preview", a.endpoint, a.deployment)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Fallback("request build failed: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return Fallback("openai call failed: " + err.Error())
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fallback("openai response read failed: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return Fallback(fmt.Sprintf("openai returned status %d", resp.StatusCode))
	}

	var parsed completionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Choices) == 0 {
		return Fallback("openai response was not usable")
	}
	var decision model.ClassificationDecision
	if err := ExtractJSONObject(parsed.Choices[0].Text, &decision); err != nil {
		return Fallback("could not parse model output")
	}
	return normalizeDecision(decision)
}
