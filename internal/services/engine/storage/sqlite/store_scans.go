package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/scan"
	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

// InsertScanEvent appends one immutable scan event. The partial unique index
// on (beacon_id, actor_id, scan_day) turns a lost same-day race into
// storage.ErrDuplicateScan.
func (s *Store) InsertScanEvent(ctx context.Context, e scan.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("scan event id is required")
	}
	if strings.TrimSpace(e.BeaconID) == "" {
		return fmt.Errorf("scan event beacon id is required")
	}
	if e.RecordedAt.IsZero() {
		return fmt.Errorf("scan event recorded-at is required")
	}

	var hasLocation int
	var lat, lon, acc float64
	if e.Location != nil {
		hasLocation = 1
		lat = e.Location.Latitude
		lon = e.Location.Longitude
		acc = e.Location.Accuracy
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO scan_events (
	id, beacon_id, actor_id, client_at, recorded_at, scan_day,
	outcome, reject_reason, has_location, latitude, longitude, accuracy, reversal
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		e.ID,
		e.BeaconID,
		e.ActorID,
		toMillis(e.ClientAt),
		toMillis(e.RecordedAt),
		scan.DayKey(e.RecordedAt),
		string(e.Outcome),
		string(e.RejectReason),
		hasLocation,
		lat,
		lon,
		acc,
		boolToInt(e.Reversal),
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(strings.ToLower(err.Error()), "scan_events.beacon_id") {
			return storage.ErrDuplicateScan
		}
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// LastValidScan returns the actor's latest valid scan time for a beacon, or
// the zero time when the actor has never validly scanned it.
func (s *Store) LastValidScan(ctx context.Context, beaconID, actorID string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if s == nil || s.db == nil {
		return time.Time{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(actorID) == "" {
		return time.Time{}, nil
	}

	row := s.db.QueryRowContext(ctx, `
SELECT recorded_at FROM scan_events
WHERE beacon_id = ? AND actor_id = ? AND outcome = 'valid' AND reversal = 0
ORDER BY recorded_at DESC
LIMIT 1
`, beaconID, actorID)

	var recordedAt int64
	if err := row.Scan(&recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("last valid scan: %w", err)
	}
	return fromMillis(recordedAt), nil
}

// ListScans returns a beacon's scan events newest-first.
func (s *Store) ListScans(ctx context.Context, beaconID string, limit int) ([]scan.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, beacon_id, actor_id, client_at, recorded_at, outcome, reject_reason,
	has_location, latitude, longitude, accuracy, reversal
FROM scan_events
WHERE beacon_id = ?
ORDER BY recorded_at DESC
LIMIT ?
`, beaconID, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var events []scan.Event
	for rows.Next() {
		var e scan.Event
		var clientAt, recordedAt int64
		var outcome, rejectReason string
		var hasLocation, reversal int
		var lat, lon, acc float64
		if err := rows.Scan(
			&e.ID,
			&e.BeaconID,
			&e.ActorID,
			&clientAt,
			&recordedAt,
			&outcome,
			&rejectReason,
			&hasLocation,
			&lat,
			&lon,
			&acc,
			&reversal,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.ClientAt = fromMillis(clientAt)
		e.RecordedAt = fromMillis(recordedAt)
		e.Outcome = scan.Outcome(outcome)
		e.RejectReason = scan.RejectReason(rejectReason)
		e.Reversal = reversal != 0
		if hasLocation != 0 {
			e.Location = &scan.Location{Latitude: lat, Longitude: lon, Accuracy: acc}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return events, nil
}

// VenueStandings groups valid scan counts by actor for a venue's beacons
// recorded in [since, until).
func (s *Store) VenueStandings(ctx context.Context, venueID string, since, until time.Time) ([]territory.Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(venueID) == "" {
		return nil, fmt.Errorf("venue id is required")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT se.actor_id, COUNT(*) AS scans
FROM scan_events se
JOIN beacons b ON b.id = se.beacon_id
WHERE b.venue_id = ?
	AND se.outcome = 'valid'
	AND se.reversal = 0
	AND se.actor_id != ''
	AND se.recorded_at >= ?
	AND se.recorded_at < ?
GROUP BY se.actor_id
ORDER BY scans DESC, se.actor_id ASC
`, venueID, toMillis(since), toMillis(until))
	if err != nil {
		return nil, fmt.Errorf("venue standings: %w", err)
	}
	defer rows.Close()

	var standings []territory.Standing
	for rows.Next() {
		var st territory.Standing
		if err := rows.Scan(&st.ActorID, &st.Scans); err != nil {
			return nil, fmt.Errorf("venue standing row: %w", err)
		}
		standings = append(standings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("venue standings: %w", err)
	}
	return standings, nil
}

// CountActorValidScans counts an actor's valid scans recorded in
// [since, until), across all beacons.
func (s *Store) CountActorValidScans(ctx context.Context, actorID string, since, until time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(actorID) == "" {
		return 0, nil
	}

	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM scan_events
WHERE actor_id = ? AND outcome = 'valid' AND reversal = 0
	AND recorded_at >= ? AND recorded_at < ?
`, actorID, toMillis(since), toMillis(until))

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count actor scans: %w", err)
	}
	return count, nil
}

// ActiveVenues lists venue IDs with valid scan activity since the cutoff.
func (s *Store) ActiveVenues(ctx context.Context, since time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT b.venue_id
FROM scan_events se
JOIN beacons b ON b.id = se.beacon_id
WHERE b.venue_id != ''
	AND se.outcome = 'valid'
	AND se.reversal = 0
	AND se.recorded_at >= ?
ORDER BY b.venue_id
`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("active venues: %w", err)
	}
	defer rows.Close()

	var venues []string
	for rows.Next() {
		var venueID string
		if err := rows.Scan(&venueID); err != nil {
			return nil, fmt.Errorf("active venue row: %w", err)
		}
		venues = append(venues, venueID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active venues: %w", err)
	}
	return venues, nil
}
