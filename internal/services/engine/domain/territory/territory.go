// Package territory models venue control: claims held by the dominant
// scanner over a rolling window, and time-bounded contests that decide
// whether control transfers.
package territory

import (
	"math"
	"time"
)

// Claim is the single active territorial claim for a venue.
type Claim struct {
	VenueID   string
	HolderID  string
	ClaimedAt time.Time
	// WindowScans is the rolling 7-day scan count backing the claim,
	// refreshed by the periodic aggregation pass.
	WindowScans int64
	// Multiplier is the royalty multiplier, always >= 1.
	Multiplier float64
	Contested  bool
	UpdatedAt  time.Time
}

// Contest is a time-bounded challenge for control of a venue. It expires at
// EndsAt regardless of outcome and is resolved by comparing scan counts
// accrued during the contest window.
type Contest struct {
	ID           string
	VenueID      string
	ChallengerID string
	DefenderID   string
	StartsAt     time.Time
	EndsAt       time.Time
	ResolvedAt   *time.Time
	WinnerID     string
}

// Open reports whether the contest is still running at now.
func (c Contest) Open(now time.Time) bool {
	return c.ResolvedAt == nil && now.Before(c.EndsAt)
}

// Expired reports whether the contest window has passed without resolution.
func (c Contest) Expired(now time.Time) bool {
	return c.ResolvedAt == nil && !now.Before(c.EndsAt)
}

// Defaults for aggregation tuning. The tuning file may override these.
const (
	// Window is the rolling span over which scan dominance is measured.
	Window = 7 * 24 * time.Hour
	// ContestDuration is the fixed challenge window length.
	ContestDuration = 24 * time.Hour
	// MultiplierStep is added per full week of consecutive holding.
	MultiplierStep = 0.1
	// MultiplierCap bounds the royalty multiplier.
	MultiplierCap = 2.0
)

// RoyaltyAmount computes the holder's cut of a base award:
// base * (multiplier - 1), truncated toward zero. The product is nudged
// upward by a tolerance before truncating so binary float noise in the
// multiplier (1.2 is stored slightly below 1.2) cannot shave a whole XP off
// the royalty. Genuine fractions like 2.5 still floor to 2.
func RoyaltyAmount(base int64, multiplier float64) int64 {
	if base <= 0 || multiplier <= 1 {
		return 0
	}
	const tolerance = 1e-9
	return int64(math.Floor(float64(base)*(multiplier-1) + tolerance))
}

// HoldMultiplier computes the multiplier for a claim held since claimedAt,
// scaling with consecutive full weeks held and saturating at cap.
func HoldMultiplier(claimedAt, now time.Time, step, cap float64) float64 {
	if step <= 0 {
		step = MultiplierStep
	}
	if cap < 1 {
		cap = MultiplierCap
	}
	weeks := int(now.Sub(claimedAt) / (7 * 24 * time.Hour))
	if weeks < 0 {
		weeks = 0
	}
	m := 1 + float64(weeks)*step
	if m > cap {
		m = cap
	}
	return m
}

// Standing is one actor's scan count for a venue over a window.
type Standing struct {
	ActorID string
	Scans   int64
}

// Leader returns the standing with the most scans. When counts tie, the
// incumbent wins; among non-incumbents ties break by actor ID for
// deterministic recomputation.
func Leader(standings []Standing, incumbentID string) (Standing, bool) {
	var best Standing
	found := false
	for _, s := range standings {
		if !found {
			best = s
			found = true
			continue
		}
		if s.Scans > best.Scans {
			best = s
			continue
		}
		if s.Scans == best.Scans {
			if s.ActorID == incumbentID {
				best = s
			} else if best.ActorID != incumbentID && s.ActorID < best.ActorID {
				best = s
			}
		}
	}
	return best, found
}

// ShouldChallenge reports whether a challenger's window count justifies
// opening a contest against the holder. Any strict excess qualifies;
// margin raises the bar when configured above zero.
func ShouldChallenge(challengerScans, holderScans, margin int64) bool {
	return challengerScans > holderScans+margin
}
