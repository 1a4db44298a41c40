// Package notify delivers fire-and-forget engine events to external
// listeners. Delivery failures are logged and never roll back the ledger
// write that produced the event.
package notify

import (
	"context"
	"log"
	"time"
)

// Kind classifies an outbound notification.
type Kind string

const (
	KindXPAwarded         Kind = "xp.awarded"
	KindTerritoryTransfer Kind = "territory.transferred"
	KindContestOpened     Kind = "territory.contest_opened"
)

// Event is one outbound notification payload.
type Event struct {
	Kind      Kind      `json:"kind"`
	ActorID   string    `json:"actorId,omitempty"`
	VenueID   string    `json:"venueId,omitempty"`
	BeaconID  string    `json:"beaconId,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	HolderID  string    `json:"holderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher publishes events best-effort.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// LogDispatcher writes notifications to the process log. It is the default
// when no broker is configured.
type LogDispatcher struct{}

// Dispatch implements Dispatcher.
func (LogDispatcher) Dispatch(_ context.Context, evt Event) {
	log.Printf("notify %s actor=%s venue=%s amount=%d", evt.Kind, evt.ActorID, evt.VenueID, evt.Amount)
}

// NopDispatcher drops notifications. Used in tests.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(context.Context, Event) {}
