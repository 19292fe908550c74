package storage

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/swap-ledger/internal/ledger"
	"github.com/aman-zulfiqar/swap-ledger/internal/models"
)

// ErrNoState is returned by StateStore.Load when nothing has been saved yet.
var ErrNoState = errors.New("no ledger state stored")

// StateStore persists whole ledger snapshots
type StateStore interface {
	// Load returns the last saved snapshot, or ErrNoState
	Load(ctx context.Context) (*ledger.State, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, s *ledger.State) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error
}

// EventPublisher fans committed ledger events out to subscribers
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *models.LedgerEvent) error
}

// EventStore is the append-only history of committed ledger events
type EventStore interface {
	// InsertEvent appends an event to the history
	InsertEvent(ctx context.Context, ev *models.LedgerEvent) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection
	io.Closer
}

// EventHandler is a function that processes ledger events
type EventHandler func(*models.LedgerEvent)
