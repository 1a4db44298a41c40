// Package aggregator runs the periodic territorial recomputation: it
// refreshes claim backing counts, opens contests when a challenger pulls
// ahead, and resolves expired contests. The pass is idempotent and reads an
// eventually-consistent view; it never participates in scan transactions.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/notify"
	"github.com/beaconreign/engine/internal/services/engine/storage"
	"github.com/beaconreign/engine/internal/services/engine/tuning"
)

// Aggregator recomputes venue control from scan history.
type Aggregator struct {
	store      storage.Store
	dispatcher notify.Dispatcher
	tuning     tuning.Tuning
	clock      func() time.Time
}

// New creates an Aggregator. A nil dispatcher drops notifications; a nil
// clock defaults to time.Now.
func New(store storage.Store, dispatcher notify.Dispatcher, t tuning.Tuning, clock func() time.Time) *Aggregator {
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Aggregator{store: store, dispatcher: dispatcher, tuning: t, clock: clock}
}

// RunOnce performs one full aggregation pass. Per-venue failures are logged
// and skipped; the next pass retries them with no user-visible impact.
func (a *Aggregator) RunOnce(ctx context.Context) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("aggregator is not configured")
	}
	now := a.clock().UTC()

	if err := a.resolveExpiredContests(ctx, now); err != nil {
		return err
	}

	venues, err := a.store.ActiveVenues(ctx, now.Add(-a.tuning.Window()))
	if err != nil {
		return fmt.Errorf("list active venues: %w", err)
	}
	for _, venueID := range venues {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.recomputeVenue(ctx, venueID, now); err != nil {
			log.Printf("aggregate venue %s: %v", venueID, err)
		}
	}
	return nil
}

// recomputeVenue refreshes one venue's claim from the trailing window.
func (a *Aggregator) recomputeVenue(ctx context.Context, venueID string, now time.Time) error {
	standings, err := a.store.VenueStandings(ctx, venueID, now.Add(-a.tuning.Window()), now)
	if err != nil {
		return err
	}

	claim, err := a.store.GetClaim(ctx, venueID)
	if errors.Is(err, storage.ErrNotFound) {
		return a.establishClaim(ctx, venueID, standings, now)
	}
	if err != nil {
		return err
	}

	holderScans := int64(0)
	for _, s := range standings {
		if s.ActorID == claim.HolderID {
			holderScans = s.Scans
			break
		}
	}

	leader, found := territory.Leader(standings, claim.HolderID)
	contested := claim.Contested
	if found && leader.ActorID != claim.HolderID &&
		territory.ShouldChallenge(leader.Scans, holderScans, a.tuning.ChallengeMargin) {
		opened, err := a.openContest(ctx, venueID, leader.ActorID, claim.HolderID, now)
		if err != nil {
			return err
		}
		if opened {
			contested = true
		}
	}

	// Sticky holding: a claim with zero backing scans persists until a
	// challenger wins a contest, so control does not flap.
	claim.WindowScans = holderScans
	claim.Multiplier = territory.HoldMultiplier(claim.ClaimedAt, now, a.tuning.MultiplierStep, a.tuning.MultiplierCap)
	claim.Contested = contested
	claim.UpdatedAt = now
	return a.store.PutClaim(ctx, claim)
}

// establishClaim creates the first claim for a venue from its current leader.
func (a *Aggregator) establishClaim(ctx context.Context, venueID string, standings []territory.Standing, now time.Time) error {
	leader, found := territory.Leader(standings, "")
	if !found || leader.Scans <= 0 {
		return nil
	}
	claim := territory.Claim{
		VenueID:     venueID,
		HolderID:    leader.ActorID,
		ClaimedAt:   now,
		WindowScans: leader.Scans,
		Multiplier:  1,
		UpdatedAt:   now,
	}
	if err := a.store.PutClaim(ctx, claim); err != nil {
		return err
	}
	a.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      notify.KindTerritoryTransfer,
		VenueID:   venueID,
		HolderID:  leader.ActorID,
		Timestamp: now,
	})
	return nil
}

// openContest starts a challenge window instead of transferring immediately,
// damping single-burst takeovers. A venue with an open contest is left alone.
func (a *Aggregator) openContest(ctx context.Context, venueID, challengerID, defenderID string, now time.Time) (bool, error) {
	contest := territory.Contest{
		ID:           uuid.NewString(),
		VenueID:      venueID,
		ChallengerID: challengerID,
		DefenderID:   defenderID,
		StartsAt:     now,
		EndsAt:       now.Add(a.tuning.ContestDuration()),
	}
	err := a.store.InsertContest(ctx, contest)
	if errors.Is(err, storage.ErrContestOpen) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	a.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      notify.KindContestOpened,
		VenueID:   venueID,
		ActorID:   challengerID,
		HolderID:  defenderID,
		Timestamp: now,
	})
	return true, nil
}

// resolveExpiredContests settles every contest whose window has passed by
// comparing scan counts accrued during the contest window. Ties favor the
// incumbent.
func (a *Aggregator) resolveExpiredContests(ctx context.Context, now time.Time) error {
	expired, err := a.store.ExpiredContests(ctx, now)
	if err != nil {
		return fmt.Errorf("list expired contests: %w", err)
	}
	for _, contest := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.resolveContest(ctx, contest, now); err != nil {
			log.Printf("resolve contest %s: %v", contest.ID, err)
		}
	}
	return nil
}

func (a *Aggregator) resolveContest(ctx context.Context, contest territory.Contest, now time.Time) error {
	standings, err := a.store.VenueStandings(ctx, contest.VenueID, contest.StartsAt, contest.EndsAt)
	if err != nil {
		return err
	}
	var challengerScans, defenderScans int64
	for _, s := range standings {
		switch s.ActorID {
		case contest.ChallengerID:
			challengerScans = s.Scans
		case contest.DefenderID:
			defenderScans = s.Scans
		}
	}

	winnerID := contest.DefenderID
	if challengerScans > defenderScans {
		winnerID = contest.ChallengerID
	}
	if err := a.store.ResolveContest(ctx, contest.ID, winnerID, now); err != nil {
		return err
	}

	claim, err := a.store.GetClaim(ctx, contest.VenueID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if winnerID == contest.DefenderID {
		// Incumbent held: the contest simply closes.
		if err == nil {
			claim.Contested = false
			claim.UpdatedAt = now
			return a.store.PutClaim(ctx, claim)
		}
		return nil
	}

	transferred := territory.Claim{
		VenueID:     contest.VenueID,
		HolderID:    winnerID,
		ClaimedAt:   now,
		WindowScans: challengerScans,
		Multiplier:  1,
		UpdatedAt:   now,
	}
	if err := a.store.PutClaim(ctx, transferred); err != nil {
		return err
	}
	a.dispatcher.Dispatch(ctx, notify.Event{
		Kind:      notify.KindTerritoryTransfer,
		VenueID:   contest.VenueID,
		HolderID:  winnerID,
		Timestamp: now,
	})
	return nil
}

// VacateClaim removes a venue's claim out-of-band, for example when the
// holder is banned. The periodic pass never evicts on its own.
func (a *Aggregator) VacateClaim(ctx context.Context, venueID string) error {
	if a == nil || a.store == nil {
		return fmt.Errorf("aggregator is not configured")
	}
	return a.store.DeleteClaim(ctx, venueID)
}
