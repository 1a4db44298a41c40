// Package server parses server command flags and launches the HTTP runtime.
package server

import (
	"context"
	"flag"

	entrypoint "github.com/beaconreign/engine/internal/platform/cmd"
	"github.com/beaconreign/engine/internal/services/engine/app"
)

// Config holds server command configuration.
type Config struct {
	Port           int      `env:"BEACONREIGN_SERVER_PORT" envDefault:"8080"`
	DBPath         string   `env:"BEACONREIGN_DB_PATH" envDefault:"data/engine.db"`
	TuningPath     string   `env:"BEACONREIGN_TUNING_PATH"`
	MQTTBroker     string   `env:"BEACONREIGN_MQTT_BROKER"`
	MQTTPrefix     string   `env:"BEACONREIGN_MQTT_PREFIX" envDefault:"beaconreign"`
	ElevatedActors []string `env:"BEACONREIGN_ELEVATED_ACTORS" envSeparator:","`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The engine HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "Path to the YAML tuning table")
	fs.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker address for notifications")
	fs.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", cfg.MQTTPrefix, "MQTT topic prefix for notifications")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the HTTP server runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		return app.RunServer(ctx, app.ServerConfig{
			Port:           cfg.Port,
			DBPath:         cfg.DBPath,
			TuningPath:     cfg.TuningPath,
			MQTTBroker:     cfg.MQTTBroker,
			MQTTPrefix:     cfg.MQTTPrefix,
			ElevatedActors: cfg.ElevatedActors,
		})
	})
}
