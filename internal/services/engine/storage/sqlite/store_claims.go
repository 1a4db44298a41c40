package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/territory"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

// PutClaim upserts the single claim row for a venue. Claims are created or
// transferred only by the aggregator and admin vacate, never by scans.
func (s *Store) PutClaim(ctx context.Context, c territory.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.VenueID) == "" {
		return fmt.Errorf("claim venue id is required")
	}
	if strings.TrimSpace(c.HolderID) == "" {
		return fmt.Errorf("claim holder id is required")
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("claim multiplier must be at least 1")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO claims (venue_id, holder_id, claimed_at, window_scans, multiplier, contested, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(venue_id) DO UPDATE SET
	holder_id = excluded.holder_id,
	claimed_at = excluded.claimed_at,
	window_scans = excluded.window_scans,
	multiplier = excluded.multiplier,
	contested = excluded.contested,
	updated_at = excluded.updated_at
`,
		c.VenueID,
		c.HolderID,
		toMillis(c.ClaimedAt),
		c.WindowScans,
		c.Multiplier,
		boolToInt(c.Contested),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put claim: %w", err)
	}
	return nil
}

// GetClaim fetches the active claim for a venue.
func (s *Store) GetClaim(ctx context.Context, venueID string) (territory.Claim, error) {
	if err := ctx.Err(); err != nil {
		return territory.Claim{}, err
	}
	if s == nil || s.db == nil {
		return territory.Claim{}, fmt.Errorf("storage is not configured")
	}
	venueID = strings.TrimSpace(venueID)
	if venueID == "" {
		return territory.Claim{}, fmt.Errorf("venue id is required")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT venue_id, holder_id, claimed_at, window_scans, multiplier, contested, updated_at
FROM claims
WHERE venue_id = ?
`, venueID)

	var c territory.Claim
	var claimedAt, updatedAt int64
	var contested int
	if err := row.Scan(&c.VenueID, &c.HolderID, &claimedAt, &c.WindowScans, &c.Multiplier, &contested, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return territory.Claim{}, storage.ErrNotFound
		}
		return territory.Claim{}, fmt.Errorf("get claim: %w", err)
	}
	c.ClaimedAt = fromMillis(claimedAt)
	c.UpdatedAt = fromMillis(updatedAt)
	c.Contested = contested != 0
	return c, nil
}

// DeleteClaim vacates a venue. Used by the admin path when a holder becomes
// ineligible; the periodic pass never deletes sticky claims on its own.
func (s *Store) DeleteClaim(ctx context.Context, venueID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE venue_id = ?`, venueID)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete claim rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// InsertContest opens a contest. The partial unique index on open contests
// turns a second open per venue into storage.ErrContestOpen.
func (s *Store) InsertContest(ctx context.Context, c territory.Contest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("contest id is required")
	}
	if strings.TrimSpace(c.VenueID) == "" {
		return fmt.Errorf("contest venue id is required")
	}
	if !c.StartsAt.Before(c.EndsAt) {
		return fmt.Errorf("contest start must precede end")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO contests (id, venue_id, challenger_id, defender_id, starts_at, ends_at, resolved_at, winner_id)
VALUES (?, ?, ?, ?, ?, ?, NULL, '')
`,
		c.ID,
		c.VenueID,
		c.ChallengerID,
		c.DefenderID,
		toMillis(c.StartsAt),
		toMillis(c.EndsAt),
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(strings.ToLower(err.Error()), "contests.venue_id") {
			return storage.ErrContestOpen
		}
		return fmt.Errorf("insert contest: %w", err)
	}
	return nil
}

// OpenContest fetches the unresolved contest for a venue.
func (s *Store) OpenContest(ctx context.Context, venueID string) (territory.Contest, error) {
	if err := ctx.Err(); err != nil {
		return territory.Contest{}, err
	}
	if s == nil || s.db == nil {
		return territory.Contest{}, fmt.Errorf("storage is not configured")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT id, venue_id, challenger_id, defender_id, starts_at, ends_at, resolved_at, winner_id
FROM contests
WHERE venue_id = ? AND resolved_at IS NULL
`, venueID)
	return scanContest(row)
}

// ExpiredContests lists unresolved contests whose window has passed.
func (s *Store) ExpiredContests(ctx context.Context, now time.Time) ([]territory.Contest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, venue_id, challenger_id, defender_id, starts_at, ends_at, resolved_at, winner_id
FROM contests
WHERE resolved_at IS NULL AND ends_at <= ?
ORDER BY ends_at ASC
`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("expired contests: %w", err)
	}
	defer rows.Close()

	var contests []territory.Contest
	for rows.Next() {
		c, err := scanContestRow(rows)
		if err != nil {
			return nil, err
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expired contests: %w", err)
	}
	return contests, nil
}

// ResolveContest closes a contest with its winner.
func (s *Store) ResolveContest(ctx context.Context, contestID, winnerID string, resolvedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE contests SET resolved_at = ?, winner_id = ?
WHERE id = ? AND resolved_at IS NULL
`, toMillis(resolvedAt), winnerID, contestID)
	if err != nil {
		return fmt.Errorf("resolve contest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve contest rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanContest(row *sql.Row) (territory.Contest, error) {
	c, err := scanContestRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return territory.Contest{}, storage.ErrNotFound
		}
		return territory.Contest{}, err
	}
	return c, nil
}

func scanContestRow(row rowScanner) (territory.Contest, error) {
	var c territory.Contest
	var startsAt, endsAt int64
	var resolvedAt sql.NullInt64
	if err := row.Scan(&c.ID, &c.VenueID, &c.ChallengerID, &c.DefenderID, &startsAt, &endsAt, &resolvedAt, &c.WinnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return territory.Contest{}, err
		}
		return territory.Contest{}, fmt.Errorf("contest row: %w", err)
	}
	c.StartsAt = fromMillis(startsAt)
	c.EndsAt = fromMillis(endsAt)
	c.ResolvedAt = fromNullMillis(resolvedAt)
	return c, nil
}
