// Package monitor consumes the ledger tail and maintains advisory suspicion
// flags for actors with anomalous XP velocity. It never blocks or reverses
// ledger entries; reversal is a separate administrative adjustment.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/beaconreign/engine/internal/services/engine/domain/anomaly"
	"github.com/beaconreign/engine/internal/services/engine/storage"
	"github.com/beaconreign/engine/internal/services/engine/tuning"
)

// Consumer is the watermark key for the monitor's ledger cursor.
const Consumer = "anomaly-monitor"

// batchSize bounds one tail read.
const batchSize = 500

// Monitor scores actors from ledger tail activity.
type Monitor struct {
	store      storage.Store
	thresholds anomaly.Thresholds
	clock      func() time.Time
}

// New creates a Monitor from the tuning thresholds. A nil clock defaults to
// time.Now.
func New(store storage.Store, t tuning.Tuning, clock func() time.Time) *Monitor {
	if clock == nil {
		clock = time.Now
	}
	return &Monitor{
		store: store,
		thresholds: anomaly.Thresholds{
			Window:   t.AnomalyWindow(),
			MaxScans: t.AnomalyMaxScans,
			MaxXP:    t.AnomalyMaxXP,
		},
		clock: clock,
	}
}

// RunOnce drains the ledger tail from the persisted cursor and rescores
// every actor seen. Delivery is at-least-once: rescoring recomputes from
// windowed history, so replays are harmless.
func (m *Monitor) RunOnce(ctx context.Context) error {
	if m == nil || m.store == nil {
		return fmt.Errorf("monitor is not configured")
	}

	cursor, err := m.store.GetWatermark(ctx, Consumer)
	if err != nil {
		return fmt.Errorf("load monitor cursor: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := m.store.Tail(ctx, cursor, batchSize)
		if err != nil {
			return fmt.Errorf("read ledger tail: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		seen := make(map[string]struct{})
		for _, e := range entries {
			seen[e.ActorID] = struct{}{}
			if e.Seq > cursor {
				cursor = e.Seq
			}
		}
		for actorID := range seen {
			if err := m.rescore(ctx, actorID); err != nil {
				log.Printf("rescore actor %s: %v", actorID, err)
			}
		}
		if err := m.store.PutWatermark(ctx, Consumer, cursor); err != nil {
			return fmt.Errorf("advance monitor cursor: %w", err)
		}
		if len(entries) < batchSize {
			return nil
		}
	}
}

// rescore recomputes one actor's rolling-window counts and persists the flag.
func (m *Monitor) rescore(ctx context.Context, actorID string) error {
	now := m.clock().UTC()
	windowStart := now.Add(-m.thresholds.Window)

	scans, err := m.store.CountActorValidScans(ctx, actorID, windowStart, now)
	if err != nil {
		return err
	}
	balanceNow, err := m.store.BalanceOf(ctx, actorID, now)
	if err != nil {
		return err
	}
	balanceThen, err := m.store.BalanceOf(ctx, actorID, windowStart)
	if err != nil {
		return err
	}
	windowXP := balanceNow - balanceThen
	if windowXP < 0 {
		windowXP = 0
	}

	return m.store.PutFlag(ctx, anomaly.Flag{
		ActorID:     actorID,
		Score:       anomaly.Score(scans, windowXP, m.thresholds),
		WindowScans: scans,
		WindowXP:    windowXP,
		UpdatedAt:   now,
	})
}
