// Package worker parses worker command flags and launches the periodic
// aggregation runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/beaconreign/engine/internal/platform/cmd"
	"github.com/beaconreign/engine/internal/services/engine/app"
)

// Config holds worker command configuration.
type Config struct {
	DBPath       string        `env:"BEACONREIGN_DB_PATH" envDefault:"data/engine.db"`
	TuningPath   string        `env:"BEACONREIGN_TUNING_PATH"`
	PollInterval time.Duration `env:"BEACONREIGN_WORKER_POLL_INTERVAL" envDefault:"30s"`
	MQTTBroker   string        `env:"BEACONREIGN_MQTT_BROKER"`
	MQTTPrefix   string        `env:"BEACONREIGN_MQTT_PREFIX" envDefault:"beaconreign"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "Path to the YAML tuning table")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Aggregation and monitor pass interval")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker address for notifications")
	fs.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", cfg.MQTTPrefix, "MQTT topic prefix for notifications")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return app.RunWorker(ctx, app.WorkerConfig{
			DBPath:       cfg.DBPath,
			TuningPath:   cfg.TuningPath,
			PollInterval: cfg.PollInterval,
			MQTTBroker:   cfg.MQTTBroker,
			MQTTPrefix:   cfg.MQTTPrefix,
		})
	})
}
