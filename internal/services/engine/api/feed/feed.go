// Package feed streams ledger activity to websocket clients. Each client
// tails the ledger from its own cursor, so a reconnect with the last seen
// seq resumes without gaps.
package feed

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

const (
	pollInterval = 2 * time.Second
	writeTimeout = 5 * time.Second
	batchSize    = 256
)

// Server upgrades /feed requests and streams entries.
type Server struct {
	store    storage.Store
	upgrader websocket.Upgrader
}

func NewServer(store storage.Store) *Server {
	return &Server{
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type entryMsg struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	ActorID     string `json:"actorId"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	ScanEventID string `json:"scanEventId,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type claimMsg struct {
	Type        string  `json:"type"`
	VenueID     string  `json:"venueId"`
	HolderID    string  `json:"holderId"`
	WindowScans int64   `json:"windowScans"`
	Multiplier  float64 `json:"multiplier"`
	Contested   bool    `json:"contested"`
	UpdatedAt   string  `json:"updatedAt"`
}

// Handler streams ledger entries with seq greater than the `since` query
// parameter. When a `venue` parameter is present, claim changes for that
// venue are interleaved into the stream.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
		venueID := r.URL.Query().Get("venue")

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Reader drains control frames and cancels on client close.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if err := s.stream(ctx, conn, since, venueID); err != nil {
			log.Printf("feed stream ended: %v", err)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
	}
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, cursor uint64, venueID string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastClaim time.Time
	for {
		entries, err := s.store.Tail(ctx, cursor, batchSize)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := writeEntry(conn, e); err != nil {
				return err
			}
			cursor = e.Seq
		}
		if venueID != "" {
			claim, err := s.store.GetClaim(ctx, venueID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				// Venue is unclaimed; nothing to push.
			case err != nil:
				return err
			case claim.UpdatedAt.After(lastClaim):
				if err := writeClaim(conn, claim); err != nil {
					return err
				}
				lastClaim = claim.UpdatedAt
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeEntry(conn *websocket.Conn, e ledger.Entry) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(entryMsg{
		Type:        "ledger.entry",
		Seq:         e.Seq,
		ActorID:     e.ActorID,
		Amount:      e.Amount,
		Reason:      string(e.Reason),
		ScanEventID: e.ScanEventID,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func writeClaim(conn *websocket.Conn, c territory.Claim) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(claimMsg{
		Type:        "territory.claim",
		VenueID:     c.VenueID,
		HolderID:    c.HolderID,
		WindowScans: c.WindowScans,
		Multiplier:  c.Multiplier,
		Contested:   c.Contested,
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
