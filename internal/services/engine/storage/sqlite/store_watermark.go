package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetWatermark returns a consumer's last processed ledger seq, or zero for a
// consumer that has never run.
func (s *Store) GetWatermark(ctx context.Context, consumer string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return 0, fmt.Errorf("consumer is required")
	}

	row := s.db.QueryRowContext(ctx, `SELECT seq FROM watermarks WHERE consumer = ?`, consumer)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get watermark: %w", err)
	}
	if seq < 0 {
		seq = 0
	}
	return uint64(seq), nil
}

// PutWatermark advances a consumer's cursor. Moving it backwards is allowed;
// consumers recompute idempotently, so a rewind only costs re-reads.
func (s *Store) PutWatermark(ctx context.Context, consumer string, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return fmt.Errorf("consumer is required")
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO watermarks (consumer, seq) VALUES (?, ?)
ON CONFLICT(consumer) DO UPDATE SET seq = excluded.seq
`, consumer, int64(seq))
	if err != nil {
		return fmt.Errorf("put watermark: %w", err)
	}
	return nil
}
