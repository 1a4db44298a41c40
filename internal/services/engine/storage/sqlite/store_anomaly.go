package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/beaconreign/engine/internal/services/engine/domain/anomaly"
	"github.com/beaconreign/engine/internal/services/engine/storage"
)

// PutFlag upserts an actor's advisory suspicion flag.
func (s *Store) PutFlag(ctx context.Context, f anomaly.Flag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(f.ActorID) == "" {
		return fmt.Errorf("flag actor id is required")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO anomaly_flags (actor_id, score, window_scans, window_xp, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(actor_id) DO UPDATE SET
	score = excluded.score,
	window_scans = excluded.window_scans,
	window_xp = excluded.window_xp,
	updated_at = excluded.updated_at
`,
		f.ActorID,
		f.Score,
		f.WindowScans,
		f.WindowXP,
		toMillis(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put anomaly flag: %w", err)
	}
	return nil
}

// GetFlag fetches an actor's suspicion flag.
func (s *Store) GetFlag(ctx context.Context, actorID string) (anomaly.Flag, error) {
	if err := ctx.Err(); err != nil {
		return anomaly.Flag{}, err
	}
	if s == nil || s.db == nil {
		return anomaly.Flag{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return anomaly.Flag{}, fmt.Errorf("actor id is required")
	}

	row := s.db.QueryRowContext(ctx, `
SELECT actor_id, score, window_scans, window_xp, updated_at
FROM anomaly_flags
WHERE actor_id = ?
`, actorID)

	var f anomaly.Flag
	var updatedAt int64
	if err := row.Scan(&f.ActorID, &f.Score, &f.WindowScans, &f.WindowXP, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return anomaly.Flag{}, storage.ErrNotFound
		}
		return anomaly.Flag{}, fmt.Errorf("get anomaly flag: %w", err)
	}
	f.UpdatedAt = fromMillis(updatedAt)
	return f, nil
}
