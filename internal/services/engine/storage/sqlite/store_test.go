package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/scan"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

var storeNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func testBeacon(id, code string) beacon.Beacon {
	return beacon.Beacon{
		ID:        id,
		Code:      code,
		Type:      beacon.TypeCheckIn,
		Title:     "Corner Cafe",
		VenueID:   "venue-1",
		OwnerID:   "owner-1",
		StartsAt:  storeNow.Add(-24 * time.Hour),
		EndsAt:    storeNow.Add(24 * time.Hour),
		Status:    beacon.StatusLive,
		CreatedAt: storeNow,
		UpdatedAt: storeNow,
		UpdatedBy: "owner-1",
	}
}

func TestBeaconRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := testBeacon("b-1", "CABCD2345")
	if err := store.InsertBeacon(ctx, want); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}

	got, err := store.GetBeacon(ctx, "b-1")
	if err != nil {
		t.Fatalf("get beacon: %v", err)
	}
	if got.Code != want.Code || got.Title != want.Title || got.Status != want.Status {
		t.Fatalf("beacon = %+v, want %+v", got, want)
	}
	if !got.StartsAt.Equal(want.StartsAt) {
		t.Fatalf("starts at = %v, want %v", got.StartsAt, want.StartsAt)
	}

	byCode, err := store.GetBeaconByCode(ctx, "CABCD2345")
	if err != nil {
		t.Fatalf("get beacon by code: %v", err)
	}
	if byCode.ID != "b-1" {
		t.Fatalf("by code id = %s, want b-1", byCode.ID)
	}

	if _, err := store.GetBeacon(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing beacon err = %v, want ErrNotFound", err)
	}
}

func TestInsertBeaconDuplicateCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.InsertBeacon(ctx, testBeacon("b-1", "CABCD2345")); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}
	err := store.InsertBeacon(ctx, testBeacon("b-2", "CABCD2345"))
	if !errors.Is(err, storage.ErrDuplicateCode) {
		t.Fatalf("duplicate code err = %v, want ErrDuplicateCode", err)
	}
}

func TestUpdateBeaconPreservesScanCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	b := testBeacon("b-1", "CABCD2345")
	if err := store.InsertBeacon(ctx, b); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}
	if err := store.IncrementScanCount(ctx, "b-1"); err != nil {
		t.Fatalf("increment: %v", err)
	}

	b.Title = "Corner Cafe East"
	b.ScanCount = 0 // stale in-memory copy must not reset the counter
	if err := store.UpdateBeacon(ctx, b); err != nil {
		t.Fatalf("update beacon: %v", err)
	}

	got, err := store.GetBeacon(ctx, "b-1")
	if err != nil {
		t.Fatalf("get beacon: %v", err)
	}
	if got.Title != "Corner Cafe East" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.ScanCount != 1 {
		t.Fatalf("scan count = %d, want 1", got.ScanCount)
	}
}

func TestListBeaconsFilter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	live := testBeacon("b-1", "CAAAA2345")
	draft := testBeacon("b-2", "CBBBB2345")
	draft.Status = beacon.StatusDraft
	other := testBeacon("b-3", "CCCCC2345")
	other.VenueID = "venue-2"
	for _, b := range []beacon.Beacon{live, draft, other} {
		if err := store.InsertBeacon(ctx, b); err != nil {
			t.Fatalf("insert %s: %v", b.ID, err)
		}
	}

	got, err := store.ListBeacons(ctx, storage.BeaconFilter{Status: beacon.StatusLive, VenueID: "venue-1"})
	if err != nil {
		t.Fatalf("list beacons: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b-1" {
		t.Fatalf("filtered list = %+v, want only b-1", got)
	}
}

func validScan(id, beaconID, actorID string, at time.Time) scan.Event {
	return scan.Event{
		ID:         id,
		BeaconID:   beaconID,
		ActorID:    actorID,
		ClientAt:   at,
		RecordedAt: at,
		Outcome:    scan.OutcomeValid,
	}
}

func TestScanEventDailyBackstop(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.InsertBeacon(ctx, testBeacon("b-1", "CABCD2345")); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}
	if err := store.InsertScanEvent(ctx, validScan("s-1", "b-1", "actor-1", storeNow)); err != nil {
		t.Fatalf("insert scan: %v", err)
	}

	// Same actor, same beacon, same UTC day loses the unique race.
	err := store.InsertScanEvent(ctx, validScan("s-2", "b-1", "actor-1", storeNow.Add(time.Hour)))
	if !errors.Is(err, storage.ErrDuplicateScan) {
		t.Fatalf("same-day scan err = %v, want ErrDuplicateScan", err)
	}

	// Next day, another actor, and rejected outcomes all pass.
	if err := store.InsertScanEvent(ctx, validScan("s-3", "b-1", "actor-1", storeNow.Add(24*time.Hour))); err != nil {
		t.Fatalf("next-day scan: %v", err)
	}
	if err := store.InsertScanEvent(ctx, validScan("s-4", "b-1", "actor-2", storeNow)); err != nil {
		t.Fatalf("other-actor scan: %v", err)
	}
	rejected := validScan("s-5", "b-1", "actor-1", storeNow)
	rejected.Outcome = scan.OutcomeRejected
	rejected.RejectReason = scan.ReasonAlreadyScanned
	if err := store.InsertScanEvent(ctx, rejected); err != nil {
		t.Fatalf("rejected scan: %v", err)
	}

	// Anonymous scans never collide with each other.
	if err := store.InsertScanEvent(ctx, validScan("s-6", "b-1", "", storeNow)); err != nil {
		t.Fatalf("anonymous scan: %v", err)
	}
	if err := store.InsertScanEvent(ctx, validScan("s-7", "b-1", "", storeNow)); err != nil {
		t.Fatalf("second anonymous scan: %v", err)
	}
}

func TestLastValidScanIgnoresRejections(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.InsertBeacon(ctx, testBeacon("b-1", "CABCD2345")); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}

	last, err := store.LastValidScan(ctx, "b-1", "actor-1")
	if err != nil {
		t.Fatalf("last valid scan: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("last = %v, want zero", last)
	}

	if err := store.InsertScanEvent(ctx, validScan("s-1", "b-1", "actor-1", storeNow)); err != nil {
		t.Fatalf("insert scan: %v", err)
	}
	rejected := validScan("s-2", "b-1", "actor-1", storeNow.Add(time.Hour))
	rejected.Outcome = scan.OutcomeRejected
	if err := store.InsertScanEvent(ctx, rejected); err != nil {
		t.Fatalf("insert rejected: %v", err)
	}

	last, err = store.LastValidScan(ctx, "b-1", "actor-1")
	if err != nil {
		t.Fatalf("last valid scan: %v", err)
	}
	if !last.Equal(storeNow) {
		t.Fatalf("last = %v, want %v", last, storeNow)
	}
}

func TestVenueStandingsAndActiveVenues(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.InsertBeacon(ctx, testBeacon("b-1", "CAAAA2345")); err != nil {
		t.Fatalf("insert beacon: %v", err)
	}
	b2 := testBeacon("b-2", "CBBBB2345")
	if err := store.InsertBeacon(ctx, b2); err != nil {
		t.Fatalf("insert beacon 2: %v", err)
	}

	// actor-1 scans both beacons, actor-2 scans one, one scan is stale.
	scans := []scan.Event{
		validScan("s-1", "b-1", "actor-1", storeNow),
		validScan("s-2", "b-2", "actor-1", storeNow.Add(time.Minute)),
		validScan("s-3", "b-1", "actor-2", storeNow),
		validScan("s-4", "b-1", "actor-1", storeNow.Add(-30 * 24 * time.Hour)),
	}
	for _, e := range scans {
		if err := store.InsertScanEvent(ctx, e); err != nil {
			t.Fatalf("insert %s: %v", e.ID, err)
		}
	}

	since := storeNow.Add(-7 * 24 * time.Hour)
	standings, err := store.VenueStandings(ctx, "venue-1", since, storeNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("venue standings: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("standings len = %d, want 2", len(standings))
	}
	if standings[0].ActorID != "actor-1" || standings[0].Scans != 2 {
		t.Fatalf("top standing = %+v, want actor-1 with 2", standings[0])
	}

	venues, err := store.ActiveVenues(ctx, since)
	if err != nil {
		t.Fatalf("active venues: %v", err)
	}
	if len(venues) != 1 || venues[0] != "venue-1" {
		t.Fatalf("active venues = %v, want [venue-1]", venues)
	}

	count, err := store.CountActorValidScans(ctx, "actor-1", since, storeNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("count scans: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestLedgerAppendAssignsMonotonicSeq(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		entry, err := store.AppendEntry(ctx, ledger.Entry{
			ActorID:   "actor-1",
			Amount:    10,
			Reason:    ledger.ReasonBeaconScan,
			CreatedAt: storeNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append entry %d: %v", i, err)
		}
		if entry.Seq <= lastSeq {
			t.Fatalf("seq %d not greater than %d", entry.Seq, lastSeq)
		}
		lastSeq = entry.Seq
	}

	balance, err := store.BalanceOf(ctx, "actor-1", storeNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 50 {
		t.Fatalf("balance = %d, want 50", balance)
	}

	// As-of balances see only earlier entries.
	partial, err := store.BalanceOf(ctx, "actor-1", storeNow.Add(90*time.Second))
	if err != nil {
		t.Fatalf("partial balance: %v", err)
	}
	if partial != 20 {
		t.Fatalf("partial balance = %d, want 20", partial)
	}
}

func TestLedgerTailResumesFromCursor(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := store.AppendEntry(ctx, ledger.Entry{
			ActorID:   "actor-1",
			Amount:    10,
			Reason:    ledger.ReasonBeaconScan,
			CreatedAt: storeNow,
		}); err != nil {
			t.Fatalf("append entry: %v", err)
		}
	}

	first, err := store.Tail(ctx, 0, 2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(first) != 2 || first[0].Seq != 1 || first[1].Seq != 2 {
		t.Fatalf("first batch = %+v", first)
	}

	rest, err := store.Tail(ctx, first[1].Seq, 100)
	if err != nil {
		t.Fatalf("tail rest: %v", err)
	}
	if len(rest) != 2 || rest[0].Seq != 3 {
		t.Fatalf("rest batch = %+v", rest)
	}
}

func TestClaimUpsertAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	claim := territory.Claim{
		VenueID:     "venue-1",
		HolderID:    "actor-1",
		ClaimedAt:   storeNow,
		WindowScans: 4,
		Multiplier:  1.0,
		UpdatedAt:   storeNow,
	}
	if err := store.PutClaim(ctx, claim); err != nil {
		t.Fatalf("put claim: %v", err)
	}

	claim.Multiplier = 1.2
	claim.WindowScans = 9
	if err := store.PutClaim(ctx, claim); err != nil {
		t.Fatalf("upsert claim: %v", err)
	}

	got, err := store.GetClaim(ctx, "venue-1")
	if err != nil {
		t.Fatalf("get claim: %v", err)
	}
	if got.Multiplier != 1.2 || got.WindowScans != 9 || got.HolderID != "actor-1" {
		t.Fatalf("claim = %+v", got)
	}

	if err := store.DeleteClaim(ctx, "venue-1"); err != nil {
		t.Fatalf("delete claim: %v", err)
	}
	if _, err := store.GetClaim(ctx, "venue-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted claim err = %v, want ErrNotFound", err)
	}
}

func TestSingleOpenContestPerVenue(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	contest := territory.Contest{
		ID:           "c-1",
		VenueID:      "venue-1",
		ChallengerID: "actor-2",
		DefenderID:   "actor-1",
		StartsAt:     storeNow,
		EndsAt:       storeNow.Add(24 * time.Hour),
	}
	if err := store.InsertContest(ctx, contest); err != nil {
		t.Fatalf("insert contest: %v", err)
	}

	second := contest
	second.ID = "c-2"
	if err := store.InsertContest(ctx, second); !errors.Is(err, storage.ErrContestOpen) {
		t.Fatalf("second contest err = %v, want ErrContestOpen", err)
	}

	open, err := store.OpenContest(ctx, "venue-1")
	if err != nil {
		t.Fatalf("open contest: %v", err)
	}
	if open.ID != "c-1" {
		t.Fatalf("open contest id = %s", open.ID)
	}

	expired, err := store.ExpiredContests(ctx, storeNow.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("expired contests: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "c-1" {
		t.Fatalf("expired = %+v", expired)
	}

	if err := store.ResolveContest(ctx, "c-1", "actor-2", storeNow.Add(24*time.Hour)); err != nil {
		t.Fatalf("resolve contest: %v", err)
	}
	if _, err := store.OpenContest(ctx, "venue-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("resolved venue open contest err = %v, want ErrNotFound", err)
	}

	// A resolved contest frees the venue for a new challenge.
	third := contest
	third.ID = "c-3"
	if err := store.InsertContest(ctx, third); err != nil {
		t.Fatalf("post-resolution contest: %v", err)
	}
}

func TestWatermarkRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seq, err := store.GetWatermark(ctx, "anomaly-monitor")
	if err != nil {
		t.Fatalf("get watermark: %v", err)
	}
	if seq != 0 {
		t.Fatalf("initial watermark = %d, want 0", seq)
	}

	if err := store.PutWatermark(ctx, "anomaly-monitor", 42); err != nil {
		t.Fatalf("put watermark: %v", err)
	}
	if err := store.PutWatermark(ctx, "anomaly-monitor", 99); err != nil {
		t.Fatalf("advance watermark: %v", err)
	}

	seq, err = store.GetWatermark(ctx, "anomaly-monitor")
	if err != nil {
		t.Fatalf("get watermark: %v", err)
	}
	if seq != 99 {
		t.Fatalf("watermark = %d, want 99", seq)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.InsertBeacon(ctx, testBeacon("b-1", "CABCD2345")); err != nil {
			return err
		}
		if _, err := tx.AppendEntry(ctx, ledger.Entry{
			ActorID: "actor-1", Amount: 10, Reason: ledger.ReasonBeaconScan, CreatedAt: storeNow,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("tx err = %v, want boom", err)
	}

	if _, err := store.GetBeacon(ctx, "b-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("beacon should have rolled back, err = %v", err)
	}
	balance, err := store.BalanceOf(ctx, "actor-1", storeNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0 after rollback", balance)
	}
}

func TestInTxRejectsNesting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx storage.Store) error {
		return tx.InTx(ctx, func(storage.Store) error { return nil })
	})
	if err == nil {
		t.Fatal("nested InTx should fail")
	}
}
