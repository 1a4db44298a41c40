// Package scan evaluates whether a beacon is scannable right now, by this
// actor, under these constraints. Validation never mutates state and is
// safe to call repeatedly and concurrently.
package scan

import (
	"math"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
)

// RejectReason enumerates validator outcomes for an ineligible scan.
type RejectReason string

const (
	ReasonNotActive          RejectReason = "NotActive"
	ReasonOutsideWindow      RejectReason = "OutsideWindow"
	ReasonOutOfRange         RejectReason = "OutOfRange"
	ReasonMembershipRequired RejectReason = "MembershipRequired"
	ReasonAlreadyScanned     RejectReason = "AlreadyScannedToday"
)

// Location is a client-observed position at scan time.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Claims carries the client-supplied facts the validator may consult.
type Claims struct {
	// Location is required when the beacon demands location proof.
	Location *Location
	// HasElevatedMembership is the entitlement lookup result for the actor.
	HasElevatedMembership bool
}

// Result is the validator verdict.
type Result struct {
	Valid  bool
	Reason RejectReason
}

func reject(reason RejectReason) Result {
	return Result{Valid: false, Reason: reason}
}

// Validate applies the eligibility rules in order, short-circuiting on the
// first failure. lastValidScan is the actor's most recent valid scan of
// this beacon, zero when none exists.
func Validate(b beacon.Beacon, claims Claims, lastValidScan time.Time, now time.Time) Result {
	if b.Status != beacon.StatusLive {
		return reject(ReasonNotActive)
	}
	if now.Before(b.StartsAt) || now.After(b.EndsAt) {
		return reject(ReasonOutsideWindow)
	}
	if b.RequiresLocationProof {
		if claims.Location == nil {
			return reject(ReasonOutOfRange)
		}
		distance := HaversineMeters(
			b.Geo.Latitude, b.Geo.Longitude,
			claims.Location.Latitude, claims.Location.Longitude,
		)
		if distance > b.Geo.RadiusMeters {
			return reject(ReasonOutOfRange)
		}
	}
	if b.RequiresElevatedMembership && !claims.HasElevatedMembership {
		return reject(ReasonMembershipRequired)
	}
	if !lastValidScan.IsZero() && SameScanDay(lastValidScan, now) {
		return reject(ReasonAlreadyScanned)
	}
	return Result{Valid: true}
}

// SameScanDay reports whether two instants fall on the same UTC calendar day,
// the default scan cooldown boundary.
func SameScanDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// DayKey formats the UTC calendar day used for the per-day uniqueness backstop.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

const earthRadiusMeters = 6371000.0

// HaversineMeters returns the great-circle distance between two coordinates.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
