package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sentryvision/internal/alerts"
	"sentryvision/internal/api"
	"sentryvision/internal/classify"
	"sentryvision/internal/config"
	"sentryvision/internal/detect"
	"sentryvision/internal/engine"
	"sentryvision/internal/frames"
	"sentryvision/internal/logging"
	"sentryvision/internal/metrics"
	"sentryvision/internal/notify"
	"sentryvision/internal/storage"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	flag.Parse()

	var mgr *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		mgr = m
	} else {
		mgr = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("sentryvision starting", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	alertStore, err := alerts.NewStore(cfg.Alerts.Path, cfg.Alerts.StoreLimit, logger)
	if err != nil {
		logger.Error("alert store init failed", "err", err)
		os.Exit(1)
	}

	archive, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	if archive != nil {
		if err := archive.Init(ctx); err != nil {
			logger.Error("storage schema init failed", "err", err)
			os.Exit(1)
		}
		defer archive.Close()
	}

	classifier, err := classify.New(cfg.Classifier)
	if err != nil {
		logger.Error("classifier init failed", "err", err)
		os.Exit(1)
	}

	extractor, err := frames.NewFFmpegExtractor(cfg.Frames.FFmpegPath, cfg.Frames.Dir)
	if err != nil {
		logger.Error("frame dir init failed", "err", err)
		os.Exit(1)
	}
	scorer := frames.NewScorer(cfg.Analysis.DownsampleWidth, cfg.Analysis.Concurrency, logger)
	detector := detect.NewMotionZScore(cfg.Analysis.AnomalyCutoff, cfg.Analysis.ZThreshold)

	gate := engine.NewGate(cfg.Cooldown.Duration)
	go gate.Sweep(ctx, cfg.Cooldown.SweepInterval)

	notifier := notify.NewKafka(cfg.Notify.Kafka, logger)
	if notifier != nil {
		defer notifier.Close()
	}

	m := metrics.New()
	pipeline := engine.NewPipeline(scorer, detector, classifier, alertStore, gate, archive, pipelineNotifier(notifier), m, logger)

	api.Start(ctx, mgr, pipeline, extractor, alertStore, m, logger, version)

	<-ctx.Done()
	logger.Info("sentryvision stopped")
}

// pipelineNotifier keeps a nil *KafkaNotifier from becoming a non-nil
// interface inside the pipeline.
func pipelineNotifier(n *notify.KafkaNotifier) engine.Notifier {
	if n == nil {
		return nil
	}
	return n
}
