// Package registry owns beacon records: creation with collision-safe code
// minting, owner-scoped mutation, and lifecycle transitions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	platformerrors "github.com/beaconreign/engine/internal/platform/errors"
	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

// maxCodeAttempts bounds the insert-and-retry loop on code collisions.
const maxCodeAttempts = 5

// Registry provides beacon CRUD on top of a BeaconStore.
type Registry struct {
	store storage.BeaconStore
	clock func() time.Time
}

// New creates a Registry. A nil clock defaults to time.Now.
func New(store storage.BeaconStore, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{store: store, clock: clock}
}

// Create validates the spec, mints a code, and inserts the beacon. On a
// code collision it retries with a freshly minted code up to the attempt
// bound; any other insert failure propagates immediately.
func (r *Registry) Create(ctx context.Context, spec beacon.Spec) (beacon.Beacon, error) {
	if r == nil || r.store == nil {
		return beacon.Beacon{}, fmt.Errorf("registry is not configured")
	}
	if err := spec.Validate(); err != nil {
		return beacon.Beacon{}, err
	}
	if strings.TrimSpace(spec.OwnerID) == "" {
		return beacon.Beacon{}, fmt.Errorf("beacon owner is required")
	}

	id, err := beacon.NewID()
	if err != nil {
		return beacon.Beacon{}, fmt.Errorf("mint beacon id: %w", err)
	}
	now := r.clock().UTC()

	b := beacon.Beacon{
		ID:          id,
		Type:        spec.Type,
		Title:       strings.TrimSpace(spec.Title),
		Description: strings.TrimSpace(spec.Description),
		VenueID:     strings.TrimSpace(spec.VenueID),
		OwnerID:     spec.OwnerID,
		Geo:         spec.Geo,
		StartsAt:    spec.StartsAt.UTC(),
		EndsAt:      spec.EndsAt.UTC(),

		RequiresLocationProof:      spec.RequiresLocationProof,
		RequiresElevatedMembership: spec.RequiresElevatedMembership,

		Status:    beacon.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: spec.OwnerID,
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := beacon.NewCode(spec.Type.TypePrefix())
		if err != nil {
			return beacon.Beacon{}, fmt.Errorf("mint beacon code: %w", err)
		}
		b.Code = code
		err = r.store.InsertBeacon(ctx, b)
		if err == nil {
			return b, nil
		}
		if errors.Is(err, storage.ErrDuplicateCode) {
			continue
		}
		return beacon.Beacon{}, err
	}
	return beacon.Beacon{}, platformerrors.New(platformerrors.CodeBeaconCollisionExhausted,
		"beacon code minting retries exhausted")
}

// Patch carries optional field changes for Update. Nil pointers leave the
// field untouched.
type Patch struct {
	Title       *string
	Description *string
	VenueID     *string
	Geo         *beacon.Geo
	StartsAt    *time.Time
	EndsAt      *time.Time

	RequiresLocationProof      *bool
	RequiresElevatedMembership *bool

	Status *beacon.Status
}

// Update resolves a beacon by ID or code and applies the patch. Only the
// owner or an admin may mutate; admin is signaled by the asAdmin flag from
// the caller's authorization layer.
func (r *Registry) Update(ctx context.Context, idOrCode, actorID string, asAdmin bool, patch Patch) (beacon.Beacon, error) {
	if r == nil || r.store == nil {
		return beacon.Beacon{}, fmt.Errorf("registry is not configured")
	}
	b, err := r.Resolve(ctx, idOrCode)
	if err != nil {
		return beacon.Beacon{}, err
	}
	if !asAdmin && b.OwnerID != actorID {
		return beacon.Beacon{}, platformerrors.New(platformerrors.CodeBeaconNotOwned,
			"only the owner or an admin may update a beacon")
	}

	if patch.Title != nil {
		b.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		b.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.VenueID != nil {
		b.VenueID = strings.TrimSpace(*patch.VenueID)
	}
	if patch.Geo != nil {
		b.Geo = *patch.Geo
	}
	if patch.StartsAt != nil {
		b.StartsAt = patch.StartsAt.UTC()
	}
	if patch.EndsAt != nil {
		b.EndsAt = patch.EndsAt.UTC()
	}
	if patch.RequiresLocationProof != nil {
		b.RequiresLocationProof = *patch.RequiresLocationProof
	}
	if patch.RequiresElevatedMembership != nil {
		b.RequiresElevatedMembership = *patch.RequiresElevatedMembership
	}
	if patch.Status != nil {
		if !beacon.CanTransition(b.Status, *patch.Status) {
			return beacon.Beacon{}, platformerrors.WithMetadata(
				platformerrors.CodeBeaconInvalidStatusChange,
				"status transition is not allowed",
				map[string]string{"from": string(b.Status), "to": string(*patch.Status)},
			)
		}
		b.Status = *patch.Status
	}

	if err := r.validateUpdated(b); err != nil {
		return beacon.Beacon{}, err
	}

	b.UpdatedAt = r.clock().UTC()
	b.UpdatedBy = actorID
	if err := r.store.UpdateBeacon(ctx, b); err != nil {
		return beacon.Beacon{}, err
	}
	return b, nil
}

func (r *Registry) validateUpdated(b beacon.Beacon) error {
	spec := beacon.Spec{
		Type:                  b.Type,
		Title:                 b.Title,
		VenueID:               b.VenueID,
		OwnerID:               b.OwnerID,
		Geo:                   b.Geo,
		StartsAt:              b.StartsAt,
		EndsAt:                b.EndsAt,
		RequiresLocationProof: b.RequiresLocationProof,
	}
	return spec.Validate()
}

// SoftDelete archives a beacon. The row survives so scan history stays
// attributable.
func (r *Registry) SoftDelete(ctx context.Context, idOrCode, actorID string, asAdmin bool) error {
	archived := beacon.StatusArchived
	_, err := r.Update(ctx, idOrCode, actorID, asAdmin, Patch{Status: &archived})
	return err
}

// Resolve fetches a beacon by opaque ID or by human code.
func (r *Registry) Resolve(ctx context.Context, idOrCode string) (beacon.Beacon, error) {
	if r == nil || r.store == nil {
		return beacon.Beacon{}, fmt.Errorf("registry is not configured")
	}
	idOrCode = strings.TrimSpace(idOrCode)
	if idOrCode == "" {
		return beacon.Beacon{}, storage.ErrNotFound
	}
	b, err := r.store.GetBeacon(ctx, idOrCode)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return beacon.Beacon{}, err
	}
	return r.store.GetBeaconByCode(ctx, idOrCode)
}

// List returns beacons newest-first, narrowed by the filter.
func (r *Registry) List(ctx context.Context, filter storage.BeaconFilter) ([]beacon.Beacon, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("registry is not configured")
	}
	return r.store.ListBeacons(ctx, filter)
}
