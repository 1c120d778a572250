package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	Frames     FramesConfig     `json:"frames" yaml:"frames"`
	Analysis   AnalysisConfig   `json:"analysis" yaml:"analysis"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier"`
	Cooldown   CooldownConfig   `json:"cooldown" yaml:"cooldown"`
	Alerts     AlertsConfig     `json:"alerts" yaml:"alerts"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	API        APIConfig        `json:"api" yaml:"api"`
}

type FramesConfig struct {
	Dir        string  `json:"dir" yaml:"dir"`
	FFmpegPath string  `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FPS        float64 `json:"fps" yaml:"fps"`
	MaxSeconds int     `json:"max_seconds" yaml:"max_seconds"`
}

type AnalysisConfig struct {
	Concurrency     int     `json:"concurrency" yaml:"concurrency"`
	DownsampleWidth int     `json:"downsample_width" yaml:"downsample_width"`
	AnomalyCutoff   float64 `json:"anomaly_cutoff" yaml:"anomaly_cutoff"`
	ZThreshold      float64 `json:"z_threshold" yaml:"z_threshold"`
}

type ClassifierConfig struct {
	Backend string        `json:"backend" yaml:"backend"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	Ollama  OllamaConfig  `json:"ollama" yaml:"ollama"`
	AzureAI AzureAIConfig `json:"azure_openai" yaml:"azure_openai"`
}

type OllamaConfig struct {
	URL   string `json:"url" yaml:"url"`
	Model string `json:"model" yaml:"model"`
}

type AzureAIConfig struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	APIKey     string `json:"api_key" yaml:"api_key"`
	Deployment string `json:"deployment" yaml:"deployment"`
}

type CooldownConfig struct {
	Duration      time.Duration `json:"duration" yaml:"duration"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

type AlertsConfig struct {
	Path       string `json:"path" yaml:"path"`
	StoreLimit int    `json:"store_limit" yaml:"store_limit"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type NotifyConfig struct {
	Kafka KafkaConfig `json:"kafka" yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Frames: FramesConfig{
			Dir:        "frames",
			FFmpegPath: "ffmpeg",
			FPS:        1,
			MaxSeconds: 60,
		},
		Analysis: AnalysisConfig{
			Concurrency:     4,
			DownsampleWidth: 320,
			AnomalyCutoff:   0.6,
			ZThreshold:      3.0,
		},
		Classifier: ClassifierConfig{
			Backend: "ollama",
			Timeout: 30 * time.Second,
			Ollama:  OllamaConfig{URL: "http://localhost:11434", Model: "llama3"},
		},
		Cooldown: CooldownConfig{
			Duration:      5 * time.Minute,
			SweepInterval: 5 * time.Second,
		},
		Alerts:  AlertsConfig{Path: "alerts-store.json", StoreLimit: 1000},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:sentryvision.db?_pragma=busy_timeout(5000)"},
		Notify:  NotifyConfig{Kafka: KafkaConfig{Enabled: false}},
		API:     APIConfig{Enabled: true, Addr: ":4000"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Frames.Dir == "" {
		cfg.Frames.Dir = "frames"
	}
	if cfg.Frames.FFmpegPath == "" {
		cfg.Frames.FFmpegPath = "ffmpeg"
	}
	if cfg.Frames.FPS <= 0 {
		cfg.Frames.FPS = 1
	}
	if cfg.Frames.MaxSeconds <= 0 {
		cfg.Frames.MaxSeconds = 60
	}
	if cfg.Analysis.DownsampleWidth <= 0 {
		cfg.Analysis.DownsampleWidth = 320
	}
	if cfg.Analysis.ZThreshold <= 0 {
		cfg.Analysis.ZThreshold = 3.0
	}
	if cfg.Classifier.Timeout <= 0 {
		cfg.Classifier.Timeout = 30 * time.Second
	}
	if cfg.Cooldown.SweepInterval <= 0 {
		cfg.Cooldown.SweepInterval = 5 * time.Second
	}
	if cfg.Alerts.Path == "" {
		cfg.Alerts.Path = "alerts-store.json"
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.Analysis.Concurrency < 1 {
		return errors.New("analysis.concurrency must be >= 1")
	}
	if cfg.Analysis.AnomalyCutoff <= 0 || cfg.Analysis.AnomalyCutoff > 1 {
		return fmt.Errorf("analysis.anomaly_cutoff must be in (0,1], got %v", cfg.Analysis.AnomalyCutoff)
	}
	if cfg.Cooldown.Duration <= 0 {
		return errors.New("cooldown.duration must be > 0")
	}
	switch cfg.Classifier.Backend {
	case "ollama", "none":
	case "azure_openai":
		if cfg.Classifier.AzureAI.Endpoint == "" || cfg.Classifier.AzureAI.Deployment == "" {
			return errors.New("classifier.azure_openai requires endpoint and deployment")
		}
	default:
		return fmt.Errorf("unsupported classifier backend: %q", cfg.Classifier.Backend)
	}
	if cfg.Notify.Kafka.Enabled {
		if len(cfg.Notify.Kafka.Brokers) == 0 || cfg.Notify.Kafka.Topic == "" {
			return errors.New("notify.kafka requires brokers and topic")
		}
	}
	if cfg.Storage.Enabled && cfg.Storage.Driver == "" {
		return errors.New("storage.driver required when storage.enabled is true")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
