package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/registry"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

type geoJSON struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
}

type beaconJSON struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	VenueID     string  `json:"venueId,omitempty"`
	OwnerID     string  `json:"ownerId"`
	Geo         geoJSON `json:"geo"`
	StartsAt    string  `json:"startsAt"`
	EndsAt      string  `json:"endsAt"`

	RequiresLocationProof      bool `json:"requiresLocationProof"`
	RequiresElevatedMembership bool `json:"requiresElevatedMembership"`

	Status    string `json:"status"`
	ScanCount int64  `json:"scanCount"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toBeaconJSON(b beacon.Beacon) beaconJSON {
	return beaconJSON{
		ID:          b.ID,
		Code:        b.Code,
		Type:        string(b.Type),
		Title:       b.Title,
		Description: b.Description,
		VenueID:     b.VenueID,
		OwnerID:     b.OwnerID,
		Geo: geoJSON{
			Latitude:     b.Geo.Latitude,
			Longitude:    b.Geo.Longitude,
			RadiusMeters: b.Geo.RadiusMeters,
		},
		StartsAt: b.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:   b.EndsAt.UTC().Format(time.RFC3339),

		RequiresLocationProof:      b.RequiresLocationProof,
		RequiresElevatedMembership: b.RequiresElevatedMembership,

		Status:    string(b.Status),
		ScanCount: b.ScanCount,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type createBeaconRequest struct {
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	VenueID     string   `json:"venueId"`
	Geo         *geoJSON `json:"geo"`
	StartsAt    string   `json:"startsAt"`
	EndsAt      string   `json:"endsAt"`

	RequiresLocationProof      bool `json:"requiresLocationProof"`
	RequiresElevatedMembership bool `json:"requiresElevatedMembership"`
}

func (s *Server) createBeacon(w http.ResponseWriter, r *http.Request) {
	actorID, _ := callerIdentity(r)
	if actorID == "" {
		writeBadRequest(w, "actor identity header is required")
		return
	}

	var req createBeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}
	startsAt, err := parseRFC3339(req.StartsAt)
	if err != nil {
		writeBadRequest(w, "startsAt must be RFC3339")
		return
	}
	endsAt, err := parseRFC3339(req.EndsAt)
	if err != nil {
		writeBadRequest(w, "endsAt must be RFC3339")
		return
	}

	spec := beacon.Spec{
		Type:        beacon.Type(req.Type),
		Title:       req.Title,
		Description: req.Description,
		VenueID:     req.VenueID,
		OwnerID:     actorID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,

		RequiresLocationProof:      req.RequiresLocationProof,
		RequiresElevatedMembership: req.RequiresElevatedMembership,
	}
	if req.Geo != nil {
		spec.Geo = beacon.Geo{
			Latitude:     req.Geo.Latitude,
			Longitude:    req.Geo.Longitude,
			RadiusMeters: req.Geo.RadiusMeters,
		}
	}

	b, err := s.registry.Create(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBeaconJSON(b))
}

func (s *Server) getBeacon(w http.ResponseWriter, r *http.Request) {
	b, err := s.registry.Resolve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBeaconJSON(b))
}

func (s *Server) listBeacons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := storage.BeaconFilter{
		Status:  beacon.Status(q.Get("status")),
		Type:    beacon.Type(q.Get("type")),
		VenueID: q.Get("venue"),
		Limit:   limit,
	}
	beacons, err := s.registry.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]beaconJSON, 0, len(beacons))
	for _, b := range beacons {
		out = append(out, toBeaconJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"beacons": out})
}

type patchBeaconRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	VenueID     *string  `json:"venueId"`
	Geo         *geoJSON `json:"geo"`
	StartsAt    *string  `json:"startsAt"`
	EndsAt      *string  `json:"endsAt"`

	RequiresLocationProof      *bool `json:"requiresLocationProof"`
	RequiresElevatedMembership *bool `json:"requiresElevatedMembership"`

	Status *string `json:"status"`
}

func (s *Server) updateBeacon(w http.ResponseWriter, r *http.Request) {
	actorID, admin := callerIdentity(r)
	if actorID == "" && !admin {
		writeBadRequest(w, "actor identity header is required")
		return
	}

	var req patchBeaconRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json")
		return
	}

	patch := registry.Patch{
		Title:       req.Title,
		Description: req.Description,
		VenueID:     req.VenueID,

		RequiresLocationProof:      req.RequiresLocationProof,
		RequiresElevatedMembership: req.RequiresElevatedMembership,
	}
	if req.Geo != nil {
		patch.Geo = &beacon.Geo{
			Latitude:     req.Geo.Latitude,
			Longitude:    req.Geo.Longitude,
			RadiusMeters: req.Geo.RadiusMeters,
		}
	}
	if req.StartsAt != nil {
		t, err := parseRFC3339(*req.StartsAt)
		if err != nil {
			writeBadRequest(w, "startsAt must be RFC3339")
			return
		}
		patch.StartsAt = &t
	}
	if req.EndsAt != nil {
		t, err := parseRFC3339(*req.EndsAt)
		if err != nil {
			writeBadRequest(w, "endsAt must be RFC3339")
			return
		}
		patch.EndsAt = &t
	}
	if req.Status != nil {
		status := beacon.Status(*req.Status)
		patch.Status = &status
	}

	b, err := s.registry.Update(r.Context(), mux.Vars(r)["id"], actorID, admin, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBeaconJSON(b))
}

func (s *Server) deleteBeacon(w http.ResponseWriter, r *http.Request) {
	actorID, admin := callerIdentity(r)
	if actorID == "" && !admin {
		writeBadRequest(w, "actor identity header is required")
		return
	}
	if err := s.registry.SoftDelete(r.Context(), mux.Vars(r)["id"], actorID, admin); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseRFC3339(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
