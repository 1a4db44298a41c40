// Package recorder implements the transactional core of scan processing:
// a scan either fully happens (event + counter + ledger entries consistent)
// or does not happen at all.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	platformerrors "github.com/beaconreign/engine/internal/platform/errors"
	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/scan"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/notify"
	"github.com/beaconreign/engine/internal/services/engine/storage"
	"github.com/beaconreign/engine/internal/services/engine/tuning"
)

// Memberships is the external entitlement service, reduced to a boolean
// capability lookup.
type Memberships interface {
	HasElevatedMembership(ctx context.Context, actorID string) (bool, error)
}

// StaticMemberships answers from a fixed set. Useful for tests and
// deployments without an entitlement service.
type StaticMemberships map[string]bool

// HasElevatedMembership implements Memberships.
func (m StaticMemberships) HasElevatedMembership(_ context.Context, actorID string) (bool, error) {
	return m[actorID], nil
}

// Recorder records scans atomically and distributes royalty XP inline.
type Recorder struct {
	store       storage.Store
	memberships Memberships
	dispatcher  notify.Dispatcher
	tuning      tuning.Tuning
	clock       func() time.Time
}

// New creates a Recorder. Nil memberships deny elevated tiers; a nil
// dispatcher drops notifications; a nil clock defaults to time.Now.
func New(store storage.Store, memberships Memberships, dispatcher notify.Dispatcher, t tuning.Tuning, clock func() time.Time) *Recorder {
	if memberships == nil {
		memberships = StaticMemberships{}
	}
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{
		store:       store,
		memberships: memberships,
		dispatcher:  dispatcher,
		tuning:      t,
		clock:       clock,
	}
}

// Receipt reports what a successful scan produced.
type Receipt struct {
	Event        scan.Event
	AwardEntry   *ledger.Entry
	RoyaltyEntry *ledger.Entry
}

// Record performs the atomic scan unit: re-validate inside the transaction,
// insert the valid scan event, bump the beacon counter, credit the actor,
// and credit the venue holder's royalty when one applies. A validation
// failure returns the rejection with zero writes; any later failure rolls
// the whole transaction back.
func (r *Recorder) Record(ctx context.Context, beaconID, actorID string, clientAt time.Time, loc *scan.Location) (Receipt, error) {
	if r == nil || r.store == nil {
		return Receipt{}, fmt.Errorf("recorder is not configured")
	}
	beaconID = strings.TrimSpace(beaconID)
	if beaconID == "" {
		return Receipt{}, storage.ErrNotFound
	}
	actorID = strings.TrimSpace(actorID)

	// Entitlement lookup happens outside the transaction: it is an external
	// boolean capability, not state the transaction guards.
	elevated := false
	if actorID != "" {
		var err error
		elevated, err = r.memberships.HasElevatedMembership(ctx, actorID)
		if err != nil {
			return Receipt{}, fmt.Errorf("membership lookup: %w", err)
		}
	}
	claims := scan.Claims{Location: loc, HasElevatedMembership: elevated}

	now := r.clock().UTC().Truncate(time.Millisecond)
	var receipt Receipt

	err := r.store.InTx(ctx, func(tx storage.Store) error {
		b, err := tx.GetBeacon(ctx, beaconID)
		if err != nil {
			return err
		}

		lastValid := time.Time{}
		if actorID != "" {
			lastValid, err = tx.LastValidScan(ctx, b.ID, actorID)
			if err != nil {
				return err
			}
		}

		// API-entry validation is an optimization only; this in-transaction
		// check is the one that closes the check-then-commit race.
		verdict := scan.Validate(b, claims, lastValid, now)
		if !verdict.Valid {
			return RejectionError(verdict.Reason)
		}

		event := scan.Event{
			ID:         uuid.NewString(),
			BeaconID:   b.ID,
			ActorID:    actorID,
			ClientAt:   clientAt.UTC(),
			RecordedAt: now,
			Outcome:    scan.OutcomeValid,
			Location:   loc,
		}
		if err := tx.InsertScanEvent(ctx, event); err != nil {
			if errors.Is(err, storage.ErrDuplicateScan) {
				// The concurrent scan that won the race already awarded; this
				// attempt correctly must not double-award.
				return platformerrors.Wrap(platformerrors.CodeConcurrencyConflict,
					"a concurrent scan for the same day already succeeded", err)
			}
			return err
		}
		if err := tx.IncrementScanCount(ctx, b.ID); err != nil {
			return err
		}
		receipt.Event = event

		if actorID == "" {
			// Anonymous scans count toward the beacon but earn no XP.
			return nil
		}

		award := r.tuning.AwardFor(b.Type)
		awardEntry, err := tx.AppendEntry(ctx, ledger.Entry{
			ActorID:     actorID,
			Amount:      award,
			Reason:      ledger.ReasonBeaconScan,
			ScanEventID: event.ID,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		receipt.AwardEntry = &awardEntry

		royaltyEntry, err := r.creditRoyalty(ctx, tx, b, actorID, award, event.ID, now)
		if err != nil {
			return err
		}
		receipt.RoyaltyEntry = royaltyEntry
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	r.notifyRecorded(ctx, receipt)
	return receipt, nil
}

// creditRoyalty appends the holder's cut when the beacon's venue is held by
// someone other than the scanner. It runs inside the recording transaction
// so royalty entries are atomic with the scan (the periodic aggregation
// pass reconciles the cached claim it reads).
func (r *Recorder) creditRoyalty(ctx context.Context, tx storage.Store, b beacon.Beacon, actorID string, award int64, eventID string, now time.Time) (*ledger.Entry, error) {
	if b.VenueID == "" {
		return nil, nil
	}
	claim, err := tx.GetClaim(ctx, b.VenueID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No claim, no royalty tax.
			return nil, nil
		}
		return nil, err
	}
	if claim.HolderID == actorID {
		return nil, nil
	}
	royalty := territory.RoyaltyAmount(award, claim.Multiplier)
	if royalty <= 0 {
		return nil, nil
	}
	entry, err := tx.AppendEntry(ctx, ledger.Entry{
		ActorID:     claim.HolderID,
		Amount:      royalty,
		Reason:      ledger.ReasonRoyaltyTax,
		ScanEventID: eventID,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// notifyRecorded emits fire-and-forget notifications after commit. Failures
// here never affect the recorded scan.
func (r *Recorder) notifyRecorded(ctx context.Context, receipt Receipt) {
	if receipt.AwardEntry != nil {
		r.dispatcher.Dispatch(ctx, notify.Event{
			Kind:      notify.KindXPAwarded,
			ActorID:   receipt.AwardEntry.ActorID,
			BeaconID:  receipt.Event.BeaconID,
			Amount:    receipt.AwardEntry.Amount,
			Timestamp: receipt.Event.RecordedAt,
		})
	}
	if receipt.RoyaltyEntry != nil {
		r.dispatcher.Dispatch(ctx, notify.Event{
			Kind:      notify.KindXPAwarded,
			ActorID:   receipt.RoyaltyEntry.ActorID,
			BeaconID:  receipt.Event.BeaconID,
			Amount:    receipt.RoyaltyEntry.Amount,
			Timestamp: receipt.Event.RecordedAt,
		})
	}
}

// RejectionError wraps a validator reason in the platform error taxonomy.
func RejectionError(reason scan.RejectReason) error {
	code := platformerrors.CodeUnknown
	switch reason {
	case scan.ReasonNotActive:
		code = platformerrors.CodeScanNotActive
	case scan.ReasonOutsideWindow:
		code = platformerrors.CodeScanOutsideWindow
	case scan.ReasonOutOfRange:
		code = platformerrors.CodeScanOutOfRange
	case scan.ReasonMembershipRequired:
		code = platformerrors.CodeScanMembershipRequired
	case scan.ReasonAlreadyScanned:
		code = platformerrors.CodeScanAlreadyScanned
	}
	return platformerrors.WithMetadata(code, "scan rejected", map[string]string{
		"reason": string(reason),
	})
}
