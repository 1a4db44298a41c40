// Package storage defines persistence contracts for the scan engine.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/anomaly"
	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/scan"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateCode indicates a beacon insert lost the unique-code race.
// The registry retries these with a freshly minted code.
var ErrDuplicateCode = errors.New("beacon code already exists")

// ErrDuplicateScan indicates a valid scan already exists for the same
// (beacon, actor, calendar day). This is the unique-constraint backstop
// behind the validator's cooldown check.
var ErrDuplicateScan = errors.New("valid scan already recorded today")

// ErrContestOpen indicates a venue already has an open contest.
var ErrContestOpen = errors.New("contest already open for venue")

// BeaconFilter narrows List results.
type BeaconFilter struct {
	Status  beacon.Status
	Type    beacon.Type
	VenueID string
	Limit   int
}

// BeaconStore persists beacon records.
type BeaconStore interface {
	// InsertBeacon fails with ErrDuplicateCode when the code is taken.
	InsertBeacon(ctx context.Context, b beacon.Beacon) error
	UpdateBeacon(ctx context.Context, b beacon.Beacon) error
	GetBeacon(ctx context.Context, id string) (beacon.Beacon, error)
	GetBeaconByCode(ctx context.Context, code string) (beacon.Beacon, error)
	// ListBeacons returns beacons newest-first.
	ListBeacons(ctx context.Context, filter BeaconFilter) ([]beacon.Beacon, error)
	// IncrementScanCount bumps the counter atomically in place.
	IncrementScanCount(ctx context.Context, beaconID string) error
}

// ScanStore persists immutable scan events.
type ScanStore interface {
	// InsertScanEvent fails with ErrDuplicateScan when a valid event for the
	// same (beacon, actor, day) already exists.
	InsertScanEvent(ctx context.Context, e scan.Event) error
	// LastValidScan returns the actor's latest valid scan time for a beacon,
	// or the zero time when none exists.
	LastValidScan(ctx context.Context, beaconID, actorID string) (time.Time, error)
	ListScans(ctx context.Context, beaconID string, limit int) ([]scan.Event, error)
	// VenueStandings groups valid scan counts by actor for scans of a
	// venue's beacons recorded in [since, until).
	VenueStandings(ctx context.Context, venueID string, since, until time.Time) ([]territory.Standing, error)
	// ActiveVenues lists venue IDs with valid scan activity since the cutoff.
	ActiveVenues(ctx context.Context, since time.Time) ([]string, error)
	// CountActorValidScans counts an actor's valid scans recorded in
	// [since, until), across all beacons.
	CountActorValidScans(ctx context.Context, actorID string, since, until time.Time) (int64, error)
}

// LedgerStore is the append-only XP journal.
type LedgerStore interface {
	// AppendEntry assigns the next monotonic seq and persists the entry.
	AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	// BalanceOf sums entries for an actor up to asOf. A zero asOf means now.
	BalanceOf(ctx context.Context, actorID string, asOf time.Time) (int64, error)
	// ListEntries returns an actor's entries oldest-first for replay.
	ListEntries(ctx context.Context, actorID string, limit int) ([]ledger.Entry, error)
	// Tail returns entries with seq > since, oldest-first, bounded by limit.
	// Consumers persist their own cursor and re-read on restart.
	Tail(ctx context.Context, since uint64, limit int) ([]ledger.Entry, error)
}

// ClaimStore persists territorial claims and contests.
type ClaimStore interface {
	// PutClaim upserts the single claim row for a venue.
	PutClaim(ctx context.Context, c territory.Claim) error
	GetClaim(ctx context.Context, venueID string) (territory.Claim, error)
	DeleteClaim(ctx context.Context, venueID string) error
	// InsertContest fails with ErrContestOpen when the venue already has an
	// unresolved contest.
	InsertContest(ctx context.Context, c territory.Contest) error
	OpenContest(ctx context.Context, venueID string) (territory.Contest, error)
	// ExpiredContests lists unresolved contests whose window has passed.
	ExpiredContests(ctx context.Context, now time.Time) ([]territory.Contest, error)
	ResolveContest(ctx context.Context, contestID, winnerID string, resolvedAt time.Time) error
}

// AnomalyStore persists advisory suspicion flags.
type AnomalyStore interface {
	PutFlag(ctx context.Context, f anomaly.Flag) error
	GetFlag(ctx context.Context, actorID string) (anomaly.Flag, error)
}

// WatermarkStore persists per-consumer ledger cursors so periodic passes
// resume from their last processed entry.
type WatermarkStore interface {
	GetWatermark(ctx context.Context, consumer string) (uint64, error)
	PutWatermark(ctx context.Context, consumer string, seq uint64) error
}

// Store aggregates every engine persistence contract.
type Store interface {
	BeaconStore
	ScanStore
	LedgerStore
	ClaimStore
	AnomalyStore
	WatermarkStore

	// InTx runs fn against a transactional view of the store. The scan
	// recorder's atomic unit runs here: either every write commits or none
	// do. fn must not retain the transactional store.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
