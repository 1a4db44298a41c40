package scan

import (
	"testing"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
)

func liveBeacon() beacon.Beacon {
	return beacon.Beacon{
		ID:       "b-1",
		Status:   beacon.StatusLive,
		StartsAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

var scanNow = time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)

func TestValidateAccepts(t *testing.T) {
	verdict := Validate(liveBeacon(), Claims{}, time.Time{}, scanNow)
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid", verdict)
	}
}

func TestValidateRejectsInOrder(t *testing.T) {
	tests := []struct {
		name      string
		beacon    func() beacon.Beacon
		claims    Claims
		lastValid time.Time
		want      RejectReason
	}{
		{
			name: "draft beacon",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.Status = beacon.StatusDraft
				return b
			},
			want: ReasonNotActive,
		},
		{
			name: "disabled beacon",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.Status = beacon.StatusDisabled
				return b
			},
			want: ReasonNotActive,
		},
		{
			name: "before window",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.StartsAt = scanNow.Add(time.Hour)
				return b
			},
			want: ReasonOutsideWindow,
		},
		{
			name: "after window",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.EndsAt = scanNow.Add(-time.Hour)
				return b
			},
			want: ReasonOutsideWindow,
		},
		{
			name: "missing location proof",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.RequiresLocationProof = true
				b.Geo = beacon.Geo{Latitude: 45.5, Longitude: -73.6, RadiusMeters: 100}
				return b
			},
			want: ReasonOutOfRange,
		},
		{
			name: "outside radius",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.RequiresLocationProof = true
				b.Geo = beacon.Geo{Latitude: 45.5, Longitude: -73.6, RadiusMeters: 100}
				return b
			},
			// Roughly 1.1km north of the beacon.
			claims: Claims{Location: &Location{Latitude: 45.51, Longitude: -73.6}},
			want:   ReasonOutOfRange,
		},
		{
			name: "membership required",
			beacon: func() beacon.Beacon {
				b := liveBeacon()
				b.RequiresElevatedMembership = true
				return b
			},
			want: ReasonMembershipRequired,
		},
		{
			name:      "already scanned today",
			beacon:    liveBeacon,
			lastValid: scanNow.Add(-2 * time.Hour),
			want:      ReasonAlreadyScanned,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := Validate(tc.beacon(), tc.claims, tc.lastValid, scanNow)
			if verdict.Valid {
				t.Fatalf("verdict valid, want rejection %s", tc.want)
			}
			if verdict.Reason != tc.want {
				t.Fatalf("reason = %s, want %s", verdict.Reason, tc.want)
			}
		})
	}
}

func TestValidateWithinRadius(t *testing.T) {
	b := liveBeacon()
	b.RequiresLocationProof = true
	b.Geo = beacon.Geo{Latitude: 45.5, Longitude: -73.6, RadiusMeters: 100}
	// About 55 meters away.
	claims := Claims{Location: &Location{Latitude: 45.5005, Longitude: -73.6}}
	verdict := Validate(b, claims, time.Time{}, scanNow)
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid", verdict)
	}
}

func TestValidateAllowsScanOnNextDay(t *testing.T) {
	// 23:50 yesterday then 00:10 today crosses the UTC day boundary.
	lastValid := time.Date(2026, time.March, 14, 23, 50, 0, 0, time.UTC)
	now := time.Date(2026, time.March, 15, 0, 10, 0, 0, time.UTC)
	verdict := Validate(liveBeacon(), Claims{}, lastValid, now)
	if !verdict.Valid {
		t.Fatalf("verdict = %+v, want valid across day boundary", verdict)
	}
}

func TestSameScanDay(t *testing.T) {
	morning := time.Date(2026, time.March, 15, 0, 0, 1, 0, time.UTC)
	night := time.Date(2026, time.March, 15, 23, 59, 59, 0, time.UTC)
	if !SameScanDay(morning, night) {
		t.Fatal("same UTC day should match")
	}
	// 19:00 EST on the 14th is 00:00 UTC on the 15th.
	est := time.FixedZone("EST", -5*3600)
	if !SameScanDay(time.Date(2026, time.March, 14, 19, 0, 0, 0, est), morning) {
		t.Fatal("day comparison should normalize to UTC")
	}
}

func TestHaversineMeters(t *testing.T) {
	if d := HaversineMeters(45.5, -73.6, 45.5, -73.6); d != 0 {
		t.Fatalf("zero distance = %f", d)
	}
	// One degree of latitude is roughly 111km.
	d := HaversineMeters(45, -73, 46, -73)
	if d < 110000 || d > 112000 {
		t.Fatalf("one-degree distance = %f, want about 111km", d)
	}
}
