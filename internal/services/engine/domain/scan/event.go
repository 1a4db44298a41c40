package scan

import "time"

// Outcome records whether a scan event was accepted.
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeRejected Outcome = "rejected"
)

// Event is one recorded scan. Events are immutable once recorded; a
// correction is a new record marked as a reversal, never an update.
type Event struct {
	ID       string
	BeaconID string
	// ActorID is empty for anonymous scans.
	ActorID string
	// ClientAt is the client-observed timestamp, advisory only.
	ClientAt time.Time
	// RecordedAt is the authoritative server clock.
	RecordedAt time.Time
	Outcome    Outcome
	// RejectReason is set when Outcome is rejected.
	RejectReason RejectReason
	// Location is present when the beacon required location proof.
	Location *Location
	// Reversal marks a correction record for an earlier event.
	Reversal bool
}
