package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
	"github.com/beaconreign/engine/internal/services/engine/domain/scan"
	"github.com/beaconreign/engine/internal/services/engine/recorder"
)

type locationJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

type scanEventJSON struct {
	ID           string        `json:"id"`
	BeaconID     string        `json:"beaconId"`
	ActorID      string        `json:"actorId,omitempty"`
	ClientAt     string        `json:"clientAt,omitempty"`
	RecordedAt   string        `json:"recordedAt"`
	Outcome      string        `json:"outcome"`
	RejectReason string        `json:"rejectReason,omitempty"`
	Location     *locationJSON `json:"location,omitempty"`
	Reversal     bool          `json:"reversal,omitempty"`
}

func toScanEventJSON(e scan.Event) scanEventJSON {
	out := scanEventJSON{
		ID:           e.ID,
		BeaconID:     e.BeaconID,
		ActorID:      e.ActorID,
		RecordedAt:   e.RecordedAt.UTC().Format(time.RFC3339),
		Outcome:      string(e.Outcome),
		RejectReason: string(e.RejectReason),
		Reversal:     e.Reversal,
	}
	if !e.ClientAt.IsZero() {
		out.ClientAt = e.ClientAt.UTC().Format(time.RFC3339)
	}
	if e.Location != nil {
		out.Location = &locationJSON{
			Latitude:  e.Location.Latitude,
			Longitude: e.Location.Longitude,
			Accuracy:  e.Location.Accuracy,
		}
	}
	return out
}

type ledgerEntryJSON struct {
	Seq         uint64 `json:"seq"`
	ActorID     string `json:"actorId"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	ScanEventID string `json:"scanEventId,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func toLedgerEntryJSON(e ledger.Entry) ledgerEntryJSON {
	return ledgerEntryJSON{
		Seq:         e.Seq,
		ActorID:     e.ActorID,
		Amount:      e.Amount,
		Reason:      string(e.Reason),
		ScanEventID: e.ScanEventID,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type scanRequest struct {
	ActorID  string        `json:"actorId"`
	ClientAt string        `json:"clientAt"`
	Location *locationJSON `json:"location"`
}

type scanResponse struct {
	Event   scanEventJSON    `json:"event"`
	Award   *ledgerEntryJSON `json:"award,omitempty"`
	Royalty *ledgerEntryJSON `json:"royalty,omitempty"`
}

func (s *Server) recordScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	// The body actorId wins so kiosks can scan on a patron's behalf; the
	// identity header covers the common self-scan.
	actorID := req.ActorID
	if actorID == "" {
		actorID, _ = callerIdentity(r)
	}

	var clientAt time.Time
	if req.ClientAt != "" {
		t, err := parseRFC3339(req.ClientAt)
		if err != nil {
			writeBadRequest(w, "clientAt must be RFC3339")
			return
		}
		clientAt = t
	}
	var loc *scan.Location
	if req.Location != nil {
		loc = &scan.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Accuracy:  req.Location.Accuracy,
		}
	}

	b, err := s.registry.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	receipt, err := s.recorder.Record(r.Context(), b.ID, actorID, clientAt, loc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScanResponse(receipt))
}

func toScanResponse(receipt recorder.Receipt) scanResponse {
	resp := scanResponse{Event: toScanEventJSON(receipt.Event)}
	if receipt.AwardEntry != nil {
		entry := toLedgerEntryJSON(*receipt.AwardEntry)
		resp.Award = &entry
	}
	if receipt.RoyaltyEntry != nil {
		entry := toLedgerEntryJSON(*receipt.RoyaltyEntry)
		resp.Royalty = &entry
	}
	return resp
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	b, err := s.registry.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.store.ListScans(r.Context(), b.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]scanEventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, toScanEventJSON(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": out})
}
