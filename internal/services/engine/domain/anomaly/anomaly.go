// Package anomaly scores actors for suspicious velocity of XP gain. Scores
// are advisory only; they never block or reverse ledger entries.
package anomaly

import (
	"time"
)

// Thresholds configures the rolling-window limits above which an actor is
// flagged.
type Thresholds struct {
	// Window is the rolling span measured, default 24 hours.
	Window time.Duration
	// MaxScans is the valid-scan count above which suspicion accrues.
	MaxScans int64
	// MaxXP is the XP gain above which suspicion accrues.
	MaxXP int64
}

// DefaultThresholds returns the stock monitoring limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:   24 * time.Hour,
		MaxScans: 50,
		MaxXP:    1000,
	}
}

// Flag is one actor's advisory suspicion state.
type Flag struct {
	ActorID     string
	Score       int
	WindowScans int64
	WindowXP    int64
	UpdatedAt   time.Time
}

// Score converts window counts into a 0-100 suspicion score. The score is a
// monotonic increasing function of the excess over threshold, saturating at
// 100 once either measure reaches double its limit.
func Score(windowScans, windowXP int64, t Thresholds) int {
	scanScore := excessScore(windowScans, t.MaxScans)
	xpScore := excessScore(windowXP, t.MaxXP)
	if scanScore > xpScore {
		return scanScore
	}
	return xpScore
}

func excessScore(value, limit int64) int {
	if limit <= 0 || value <= limit {
		return 0
	}
	excess := value - limit
	score := int(excess * 100 / limit)
	if score > 100 {
		return 100
	}
	return score
}

// Suspicious reports whether a score crosses the advisory flagging line.
func Suspicious(score int) bool {
	return score > 0
}
