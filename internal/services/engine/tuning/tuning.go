// Package tuning loads the engine's award and threshold tables from a YAML
// file, with stock defaults when no file is configured.
package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
)

// Tuning carries every configurable engine constant.
type Tuning struct {
	// BaseAwards maps beacon type to the fixed XP credited per valid scan.
	// Types absent from the table fall back to DefaultAward.
	BaseAwards   map[string]int64 `yaml:"base_awards"`
	DefaultAward int64            `yaml:"default_award"`

	// WindowDays is the rolling dominance window in days.
	WindowDays int `yaml:"window_days"`
	// ContestHours is the challenge window length in hours.
	ContestHours int `yaml:"contest_hours"`
	// ChallengeMargin is the strict excess a challenger needs beyond the
	// holder's count before a contest opens. Zero means any strict excess.
	ChallengeMargin int64 `yaml:"challenge_margin"`

	MultiplierStep float64 `yaml:"multiplier_step"`
	MultiplierCap  float64 `yaml:"multiplier_cap"`

	// Anomaly thresholds over a rolling 24h window.
	AnomalyMaxScans    int64 `yaml:"anomaly_max_scans"`
	AnomalyMaxXP       int64 `yaml:"anomaly_max_xp"`
	AnomalyWindowHours int   `yaml:"anomaly_window_hours"`
}

// Default returns the stock tuning table.
func Default() Tuning {
	return Tuning{
		BaseAwards:         map[string]int64{},
		DefaultAward:       10,
		WindowDays:         7,
		ContestHours:       24,
		ChallengeMargin:    0,
		MultiplierStep:     0.1,
		MultiplierCap:      2.0,
		AnomalyMaxScans:    50,
		AnomalyMaxXP:       1000,
		AnomalyWindowHours: 24,
	}
}

// Load reads a tuning file and overlays it on the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning file: %w", err)
	}
	if err := t.validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) validate() error {
	if t.DefaultAward <= 0 {
		return fmt.Errorf("tuning default_award must be positive")
	}
	if t.WindowDays <= 0 {
		return fmt.Errorf("tuning window_days must be positive")
	}
	if t.ContestHours <= 0 {
		return fmt.Errorf("tuning contest_hours must be positive")
	}
	if t.MultiplierCap < 1 {
		return fmt.Errorf("tuning multiplier_cap must be at least 1")
	}
	return nil
}

// AwardFor returns the base XP award for a beacon type.
func (t Tuning) AwardFor(bt beacon.Type) int64 {
	if amount, ok := t.BaseAwards[string(bt)]; ok && amount > 0 {
		return amount
	}
	return t.DefaultAward
}

// Window returns the rolling dominance window.
func (t Tuning) Window() time.Duration {
	return time.Duration(t.WindowDays) * 24 * time.Hour
}

// ContestDuration returns the challenge window length.
func (t Tuning) ContestDuration() time.Duration {
	return time.Duration(t.ContestHours) * time.Hour
}

// AnomalyWindow returns the rolling monitoring window.
func (t Tuning) AnomalyWindow() time.Duration {
	if t.AnomalyWindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(t.AnomalyWindowHours) * time.Hour
}
