package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/ledger"
)

// AppendEntry persists one ledger entry and returns it with the assigned
// monotonic seq. Entries are append-only; there is no update or delete path.
func (s *Store) AppendEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}
	if s == nil || s.db == nil {
		return ledger.Entry{}, fmt.Errorf("storage is not configured")
	}
	if err := e.Validate(); err != nil {
		return ledger.Entry{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)

	result, err := s.db.ExecContext(ctx, `
INSERT INTO ledger_entries (actor_id, amount, reason, scan_event_id, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		e.ActorID,
		e.Amount,
		string(e.Reason),
		e.ScanEventID,
		toMillis(e.CreatedAt),
	)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("append ledger entry seq: %w", err)
	}
	if seq <= 0 {
		return ledger.Entry{}, fmt.Errorf("ledger seq is required")
	}
	e.Seq = uint64(seq)
	return e, nil
}

// BalanceOf sums an actor's entries up to asOf. A zero asOf means now.
func (s *Store) BalanceOf(ctx context.Context, actorID string, asOf time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
WHERE actor_id = ? AND created_at <= ?
`, actorID, toMillis(asOf))

	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("balance of: %w", err)
	}
	return balance, nil
}

// ListEntries returns an actor's entries oldest-first for replay.
func (s *Store) ListEntries(ctx context.Context, actorID string, limit int) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, actor_id, amount, reason, scan_event_id, created_at
FROM ledger_entries
WHERE actor_id = ?
ORDER BY seq ASC
LIMIT ?
`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Tail returns entries with seq strictly greater than since, oldest-first.
// Delivery is at-least-once: consumers persist their own cursor and replay
// idempotently after restarts.
func (s *Store) Tail(ctx context.Context, since uint64, limit int) ([]ledger.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT seq, actor_id, amount, reason, scan_event_id, created_at
FROM ledger_entries
WHERE seq > ?
ORDER BY seq ASC
LIMIT ?
`, int64(since), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger tail: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var seq int64
		var reason string
		var createdAt int64
		if err := rows.Scan(&seq, &e.ActorID, &e.Amount, &reason, &e.ScanEventID, &createdAt); err != nil {
			return nil, fmt.Errorf("ledger entry row: %w", err)
		}
		e.Seq = uint64(seq)
		e.Reason = ledger.Reason(reason)
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}
	return entries, nil
}
