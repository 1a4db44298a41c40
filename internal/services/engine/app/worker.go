package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/aggregator"
	"github.com/beaconreign/engine/internal/services/engine/monitor"
	enginesqlite "github.com/beaconreign/engine/internal/services/engine/storage/sqlite"
	"github.com/beaconreign/engine/internal/services/engine/tuning"
)

// WorkerConfig controls the periodic aggregation and monitoring runtime.
type WorkerConfig struct {
	DBPath       string
	TuningPath   string
	PollInterval time.Duration
	MQTTBroker   string
	MQTTPrefix   string
}

const defaultPollInterval = 30 * time.Second

// RunWorker drives the territorial aggregator and the anomaly monitor on a
// fixed interval until ctx is canceled. Each pass is best effort; failures
// are logged and retried on the next tick.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := enginesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close sqlite store: %v", closeErr)
		}
	}()

	tun, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg.MQTTBroker, cfg.MQTTPrefix)
	if err != nil {
		return fmt.Errorf("connect notification broker: %w", err)
	}
	defer closeDispatcher()

	agg := aggregator.New(store, dispatcher, tun, clockNow)
	mon := monitor.New(store, tun, clockNow)

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	log.Printf("engine worker polling every %s", cfg.PollInterval)
	for {
		if err := agg.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("aggregation pass: %v", err)
		}
		if err := mon.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("monitor pass: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
