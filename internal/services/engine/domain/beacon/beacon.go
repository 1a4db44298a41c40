// Package beacon defines the beacon model: a scannable, location- and
// time-bounded unit representing a venue, event, or offer.
package beacon

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beaconreign/engine/internal/platform/errors"
)

// Type classifies what a beacon represents.
type Type string

const (
	TypeCheckIn        Type = "checkin"
	TypeTicket         Type = "ticket"
	TypeProductDrop    Type = "product-drop"
	TypeContentRelease Type = "content-release"
	TypeLiveEvent      Type = "live-event"
	TypeChatRoom       Type = "chat-room"
	TypeVendor         Type = "vendor"
	TypeReward         Type = "reward"
	TypeSponsor        Type = "sponsor"
)

// Types lists every valid beacon type.
var Types = []Type{
	TypeCheckIn,
	TypeTicket,
	TypeProductDrop,
	TypeContentRelease,
	TypeLiveEvent,
	TypeChatRoom,
	TypeVendor,
	TypeReward,
	TypeSponsor,
}

// Valid reports whether t is a known beacon type.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the beacon lifecycle state.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending-review"
	StatusLive          Status = "live"
	StatusExpired       Status = "expired"
	StatusArchived      Status = "archived"
	StatusDisabled      Status = "disabled"
)

// CanTransition reports whether a status change is allowed. Transitions are
// one-directional except disable/re-enable; archived and disabled are the
// only states reachable from anywhere, and archived is terminal.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch to {
	case StatusArchived:
		return from != StatusArchived
	case StatusDisabled:
		return from != StatusArchived && from != StatusDisabled
	}
	switch from {
	case StatusDraft:
		return to == StatusPendingReview || to == StatusLive
	case StatusPendingReview:
		return to == StatusLive
	case StatusLive:
		return to == StatusExpired
	case StatusDisabled:
		// Re-enable restores the beacon to live.
		return to == StatusLive
	}
	return false
}

// Geo is a registered beacon location with an allowed scan radius.
type Geo struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Beacon is a persisted beacon record.
type Beacon struct {
	ID          string
	Code        string
	Type        Type
	Title       string
	Description string
	VenueID     string
	OwnerID     string
	Geo         Geo
	StartsAt    time.Time
	EndsAt      time.Time

	RequiresLocationProof      bool
	RequiresElevatedMembership bool

	Status    Status
	ScanCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy string
}

// Spec carries caller-supplied fields for beacon creation.
type Spec struct {
	Type        Type
	Title       string
	Description string
	VenueID     string
	OwnerID     string
	Geo         Geo
	StartsAt    time.Time
	EndsAt      time.Time

	RequiresLocationProof      bool
	RequiresElevatedMembership bool
}

// Validate checks the required creation fields.
func (s Spec) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(s.Title)) < 2 {
		return errors.New(errors.CodeBeaconTitleTooShort, "beacon title must have at least 2 characters")
	}
	if !s.Type.Valid() {
		return errors.WithMetadata(errors.CodeBeaconInvalidType, "unknown beacon type", map[string]string{
			"type": string(s.Type),
		})
	}
	if s.StartsAt.IsZero() || s.EndsAt.IsZero() || !s.StartsAt.Before(s.EndsAt) {
		return errors.New(errors.CodeBeaconInvalidWindow, "beacon window start must precede end")
	}
	if s.Geo.Latitude < -90 || s.Geo.Latitude > 90 || s.Geo.Longitude < -180 || s.Geo.Longitude > 180 {
		return errors.New(errors.CodeBeaconInvalidCoordinates, "beacon coordinates are out of bounds")
	}
	if s.RequiresLocationProof && s.Geo.RadiusMeters <= 0 {
		return errors.New(errors.CodeBeaconInvalidRadius, "location-proof beacons require a positive radius")
	}
	return nil
}
