package classify

import (
	"time"

	"sentryvision/internal/config"
)

func configWithBackend(backend string) config.ClassifierConfig {
	return config.ClassifierConfig{
		Backend: backend,
		Timeout: time.Second,
		Ollama:  config.OllamaConfig{URL: "http://localhost:11434", Model: "llama3"},
	}
}
