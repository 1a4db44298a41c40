package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	enginesqlite "github.com/beaconreign/engine/internal/services/engine/storage/sqlite"
)

var feedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func dialFeed(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestFeedStreamsEntriesFromCursor(t *testing.T) {
	store, err := enginesqlite.Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var last ledger.Entry
	for i := 0; i < 3; i++ {
		last, err = store.AppendEntry(context.Background(), ledger.Entry{
			ActorID:   "actor-1",
			Amount:    10,
			Reason:    ledger.ReasonManualAdjustment,
			CreatedAt: feedNow,
		})
		if err != nil {
			t.Fatalf("append entry: %v", err)
		}
	}

	ts := httptest.NewServer(NewServer(store).Handler())
	t.Cleanup(ts.Close)

	// Resuming after the first entry must deliver only the later two.
	conn := dialFeed(t, ts, "since=1")
	var first entryMsg
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first message: %v", err)
	}
	if first.Type != "ledger.entry" || first.Seq != 2 {
		t.Fatalf("first message = %+v, want seq 2", first)
	}
	var second entryMsg
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second message: %v", err)
	}
	if second.Seq != last.Seq {
		t.Fatalf("second seq = %d, want %d", second.Seq, last.Seq)
	}
}

func TestFeedPushesClaimForWatchedVenue(t *testing.T) {
	store, err := enginesqlite.Open(t.TempDir() + "/engine.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	claim := territory.Claim{
		VenueID:     "venue-1",
		HolderID:    "actor-1",
		ClaimedAt:   feedNow,
		WindowScans: 4,
		Multiplier:  1.1,
		UpdatedAt:   feedNow,
	}
	if err := store.PutClaim(context.Background(), claim); err != nil {
		t.Fatalf("put claim: %v", err)
	}

	ts := httptest.NewServer(NewServer(store).Handler())
	t.Cleanup(ts.Close)

	conn := dialFeed(t, ts, "venue=venue-1")
	var msg claimMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read claim message: %v", err)
	}
	if msg.Type != "territory.claim" || msg.HolderID != "actor-1" {
		t.Fatalf("claim message = %+v", msg)
	}
	if msg.WindowScans != 4 {
		t.Fatalf("window scans = %d, want 4", msg.WindowScans)
	}
}
