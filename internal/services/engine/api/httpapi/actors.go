package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/beaconreign/engine/internal/services/engine/domain/anomaly"
	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

type claimJSON struct {
	VenueID     string  `json:"venueId"`
	HolderID    string  `json:"holderId"`
	ClaimedAt   string  `json:"claimedAt"`
	WindowScans int64   `json:"windowScans"`
	Multiplier  float64 `json:"multiplier"`
	Contested   bool    `json:"contested"`
}

type contestJSON struct {
	ID           string `json:"id"`
	VenueID      string `json:"venueId"`
	ChallengerID string `json:"challengerId"`
	DefenderID   string `json:"defenderId"`
	StartsAt     string `json:"startsAt"`
	EndsAt       string `json:"endsAt"`
}

func toClaimJSON(c territory.Claim) claimJSON {
	return claimJSON{
		VenueID:     c.VenueID,
		HolderID:    c.HolderID,
		ClaimedAt:   c.ClaimedAt.UTC().Format(time.RFC3339),
		WindowScans: c.WindowScans,
		Multiplier:  c.Multiplier,
		Contested:   c.Contested,
	}
}

func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["id"]
	claim, err := s.store.GetClaim(r.Context(), venueID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"claim": toClaimJSON(claim)}

	contest, err := s.store.OpenContest(r.Context(), venueID)
	switch {
	case err == nil:
		resp["contest"] = contestJSON{
			ID:           contest.ID,
			VenueID:      contest.VenueID,
			ChallengerID: contest.ChallengerID,
			DefenderID:   contest.DefenderID,
			StartsAt:     contest.StartsAt.UTC().Format(time.RFC3339),
			EndsAt:       contest.EndsAt.UTC().Format(time.RFC3339),
		}
	case errors.Is(err, storage.ErrNotFound):
		// No open contest is the common case.
	default:
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// vacateClaim evicts a venue's holder out-of-band, for example after a ban.
// The periodic aggregation pass never evicts on its own.
func (s *Server) vacateClaim(w http.ResponseWriter, r *http.Request) {
	if _, admin := callerIdentity(r); !admin {
		writeForbidden(w, "only an admin may vacate a claim")
		return
	}
	if err := s.store.DeleteClaim(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	actorID := mux.Vars(r)["id"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.store.ListEntries(r.Context(), actorID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := s.store.BalanceOf(r.Context(), actorID, s.clock().UTC())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]ledgerEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toLedgerEntryJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actorId": actorID,
		"balance": balance,
		"level":   ledger.Level(balance),
		"entries": out,
	})
}

type adjustmentRequest struct {
	Amount int64 `json:"amount"`
}

// adjustLedger appends an administrative manual-adjustment entry. A negative
// amount reverses previously awarded XP; the original entries stay in the
// ledger untouched.
func (s *Server) adjustLedger(w http.ResponseWriter, r *http.Request) {
	if _, admin := callerIdentity(r); !admin {
		writeForbidden(w, "only an admin may adjust a ledger")
		return
	}
	var req adjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	entry, err := s.store.AppendEntry(r.Context(), ledger.Entry{
		ActorID:   mux.Vars(r)["id"],
		Amount:    req.Amount,
		Reason:    ledger.ReasonManualAdjustment,
		CreatedAt: s.clock().UTC(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLedgerEntryJSON(entry))
}

func (s *Server) getAnomaly(w http.ResponseWriter, r *http.Request) {
	actorID := mux.Vars(r)["id"]
	flag, err := s.store.GetFlag(r.Context(), actorID)
	if errors.Is(err, storage.ErrNotFound) {
		// An unmonitored actor is simply unsuspicious.
		flag = anomaly.Flag{ActorID: actorID}
		err = nil
	}
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"actorId":     actorID,
		"score":       flag.Score,
		"suspicious":  anomaly.Suspicious(flag.Score),
		"windowScans": flag.WindowScans,
		"windowXp":    flag.WindowXP,
	}
	if !flag.UpdatedAt.IsZero() {
		resp["updatedAt"] = flag.UpdatedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
