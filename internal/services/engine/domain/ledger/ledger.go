// Package ledger defines the append-only XP ledger model. The ledger is the
// single source of truth for XP: the sum of an actor's entries at any point
// in time is that actor's balance, and no other component writes XP.
package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/beaconreign/engine/internal/platform/errors"
)

// Reason classifies why XP moved.
type Reason string

const (
	// ReasonBeaconScan credits an actor for their own valid scan.
	ReasonBeaconScan Reason = "beacon-scan"
	// ReasonRoyaltyTax credits a territorial holder for a vassal's scan.
	ReasonRoyaltyTax Reason = "royalty-tax"
	// ReasonManualAdjustment is an administrative correction, usually negative.
	ReasonManualAdjustment Reason = "manual-adjustment"
)

// Valid reports whether r is a known reason code.
func (r Reason) Valid() bool {
	switch r {
	case ReasonBeaconScan, ReasonRoyaltyTax, ReasonManualAdjustment:
		return true
	}
	return false
}

// Entry is one immutable, signed XP transaction attributable to one actor.
// Corrections are new entries with negative amounts, never edits.
type Entry struct {
	// Seq is the monotonically ordered append key, assigned by storage.
	Seq     uint64
	ActorID string
	// Amount is positive for awards and negative for reversals.
	Amount int64
	Reason Reason
	// ScanEventID references the triggering scan event when one exists.
	ScanEventID string
	CreatedAt   time.Time
}

// Validate checks an entry before append.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.ActorID) == "" {
		return errors.New(errors.CodeLedgerEmptyActorID, "ledger entry actor id is required")
	}
	if e.Amount == 0 {
		return errors.New(errors.CodeLedgerZeroAmount, "ledger entry amount must be non-zero")
	}
	if !e.Reason.Valid() {
		return errors.WithMetadata(errors.CodeLedgerInvalidReason, "unknown ledger reason", map[string]string{
			"reason": string(e.Reason),
		})
	}
	return nil
}

// Fold replays entries into a balance. Replaying the same sequence twice
// yields the same balance; storage caches must defer to this on conflict.
func Fold(entries []Entry) int64 {
	var balance int64
	for _, e := range entries {
		balance += e.Amount
	}
	return balance
}

// Level derives the display level for an XP total.
// level(xp) = floor(sqrt(xp / 100)) + 1.
func Level(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(float64(xp)/100))) + 1
}

// XPForLevel returns the XP total at which a level begins.
// xpForLevel(n) = (n-1)^2 * 100.
func XPForLevel(n int) int64 {
	if n <= 1 {
		return 0
	}
	return int64(n-1) * int64(n-1) * 100
}
