package worker

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesEnvAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("BEACONREIGN_DB_PATH", "/var/lib/engine.db")
	t.Setenv("BEACONREIGN_MQTT_BROKER", "tcp://mqtt:1883")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "5s", "-tuning", "tuning.yaml"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/var/lib/engine.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.MQTTBroker != "tcp://mqtt:1883" {
		t.Fatalf("mqtt broker = %q", cfg.MQTTBroker)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want flag override", cfg.PollInterval)
	}
	if cfg.TuningPath != "tuning.yaml" {
		t.Fatalf("tuning path = %q", cfg.TuningPath)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "data/engine.db" {
		t.Fatalf("db path = %q, want default", cfg.DBPath)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.MQTTPrefix != "beaconreign" {
		t.Fatalf("mqtt prefix = %q, want default", cfg.MQTTPrefix)
	}
}
