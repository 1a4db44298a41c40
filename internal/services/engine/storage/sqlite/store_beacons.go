package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/beaconreign/engine/internal/services/engine/domain/beacon"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

const beaconColumns = `id, code, type, title, description, venue_id, owner_id,
latitude, longitude, radius_m, starts_at, ends_at,
requires_location_proof, requires_membership, status, scan_count,
created_at, updated_at, updated_by`

// InsertBeacon persists a new beacon. A unique-code race surfaces as
// storage.ErrDuplicateCode so the registry can retry with a fresh code.
func (s *Store) InsertBeacon(ctx context.Context, b beacon.Beacon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("beacon id is required")
	}
	if strings.TrimSpace(b.Code) == "" {
		return fmt.Errorf("beacon code is required")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO beacons (
	id, code, type, title, description, venue_id, owner_id,
	latitude, longitude, radius_m, starts_at, ends_at,
	requires_location_proof, requires_membership, status, scan_count,
	created_at, updated_at, updated_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		b.ID,
		beacon.CanonicalCode(b.Code),
		string(b.Type),
		b.Title,
		b.Description,
		b.VenueID,
		b.OwnerID,
		b.Geo.Latitude,
		b.Geo.Longitude,
		b.Geo.RadiusMeters,
		toMillis(b.StartsAt),
		toMillis(b.EndsAt),
		boolToInt(b.RequiresLocationProof),
		boolToInt(b.RequiresElevatedMembership),
		string(b.Status),
		b.ScanCount,
		toMillis(b.CreatedAt),
		toMillis(b.UpdatedAt),
		b.UpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(strings.ToLower(err.Error()), "beacons.code") {
			return storage.ErrDuplicateCode
		}
		return fmt.Errorf("insert beacon: %w", err)
	}
	return nil
}

// UpdateBeacon rewrites the mutable beacon fields. The scan counter is
// excluded: it only moves through IncrementScanCount.
func (s *Store) UpdateBeacon(ctx context.Context, b beacon.Beacon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("beacon id is required")
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE beacons SET
	title = ?,
	description = ?,
	venue_id = ?,
	latitude = ?,
	longitude = ?,
	radius_m = ?,
	starts_at = ?,
	ends_at = ?,
	requires_location_proof = ?,
	requires_membership = ?,
	status = ?,
	updated_at = ?,
	updated_by = ?
WHERE id = ?
`,
		b.Title,
		b.Description,
		b.VenueID,
		b.Geo.Latitude,
		b.Geo.Longitude,
		b.Geo.RadiusMeters,
		toMillis(b.StartsAt),
		toMillis(b.EndsAt),
		boolToInt(b.RequiresLocationProof),
		boolToInt(b.RequiresElevatedMembership),
		string(b.Status),
		toMillis(b.UpdatedAt),
		b.UpdatedBy,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update beacon: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update beacon rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetBeacon fetches a beacon by its opaque ID.
func (s *Store) GetBeacon(ctx context.Context, id string) (beacon.Beacon, error) {
	if err := ctx.Err(); err != nil {
		return beacon.Beacon{}, err
	}
	if s == nil || s.db == nil {
		return beacon.Beacon{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return beacon.Beacon{}, fmt.Errorf("beacon id is required")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+beaconColumns+` FROM beacons WHERE id = ?`, id)
	return scanBeacon(row)
}

// GetBeaconByCode fetches a beacon by its human code, case-insensitively.
func (s *Store) GetBeaconByCode(ctx context.Context, code string) (beacon.Beacon, error) {
	if err := ctx.Err(); err != nil {
		return beacon.Beacon{}, err
	}
	if s == nil || s.db == nil {
		return beacon.Beacon{}, fmt.Errorf("storage is not configured")
	}
	canonical := beacon.CanonicalCode(code)
	if canonical == "" {
		return beacon.Beacon{}, fmt.Errorf("beacon code is required")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+beaconColumns+` FROM beacons WHERE code = ?`, canonical)
	return scanBeacon(row)
}

// ListBeacons returns beacons newest-first, narrowed by the filter.
func (s *Store) ListBeacons(ctx context.Context, filter storage.BeaconFilter) ([]beacon.Beacon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT ` + beaconColumns + ` FROM beacons WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.VenueID != "" {
		query += ` AND venue_id = ?`
		args = append(args, filter.VenueID)
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list beacons: %w", err)
	}
	defer rows.Close()

	var beacons []beacon.Beacon
	for rows.Next() {
		b, err := scanBeaconRow(rows)
		if err != nil {
			return nil, err
		}
		beacons = append(beacons, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list beacons: %w", err)
	}
	return beacons, nil
}

// IncrementScanCount bumps the beacon scan counter in place.
func (s *Store) IncrementScanCount(ctx context.Context, beaconID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE beacons SET scan_count = scan_count + 1 WHERE id = ?
`, beaconID)
	if err != nil {
		return fmt.Errorf("increment scan count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment scan count rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBeacon(row *sql.Row) (beacon.Beacon, error) {
	b, err := scanBeaconRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return beacon.Beacon{}, storage.ErrNotFound
		}
		return beacon.Beacon{}, err
	}
	return b, nil
}

func scanBeaconRow(row rowScanner) (beacon.Beacon, error) {
	var b beacon.Beacon
	var beaconType, status string
	var startsAt, endsAt, createdAt, updatedAt int64
	var requiresLocation, requiresMembership int
	if err := row.Scan(
		&b.ID,
		&b.Code,
		&beaconType,
		&b.Title,
		&b.Description,
		&b.VenueID,
		&b.OwnerID,
		&b.Geo.Latitude,
		&b.Geo.Longitude,
		&b.Geo.RadiusMeters,
		&startsAt,
		&endsAt,
		&requiresLocation,
		&requiresMembership,
		&status,
		&b.ScanCount,
		&createdAt,
		&updatedAt,
		&b.UpdatedBy,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return beacon.Beacon{}, err
		}
		return beacon.Beacon{}, fmt.Errorf("scan beacon row: %w", err)
	}
	b.Type = beacon.Type(beaconType)
	b.Status = beacon.Status(status)
	b.StartsAt = fromMillis(startsAt)
	b.EndsAt = fromMillis(endsAt)
	b.RequiresLocationProof = requiresLocation != 0
	b.RequiresElevatedMembership = requiresMembership != 0
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return b, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
