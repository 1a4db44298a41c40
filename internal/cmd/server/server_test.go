package server

import (
	"flag"
	"testing"
)

func TestParseConfig_ParsesEnvAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	t.Setenv("BEACONREIGN_SERVER_PORT", "9090")
	t.Setenv("BEACONREIGN_ELEVATED_ACTORS", "vip-1,vip-2")

	cfg, err := ParseConfig(fs, []string{"-db-path", "/tmp/engine.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Port)
	}
	if cfg.DBPath != "/tmp/engine.db" {
		t.Fatalf("db path = %q, want flag override", cfg.DBPath)
	}
	if len(cfg.ElevatedActors) != 2 || cfg.ElevatedActors[0] != "vip-1" {
		t.Fatalf("elevated actors = %v", cfg.ElevatedActors)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/engine.db" {
		t.Fatalf("db path = %q, want default", cfg.DBPath)
	}
}
