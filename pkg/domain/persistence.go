package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StateSavingMethod selects where serialized view state lives between requests.
type StateSavingMethod string

const (
	// StateSavingServer keeps view state in a StateStore and hands out a key.
	StateSavingServer StateSavingMethod = "server"
	// StateSavingClient hands the signed view state itself to the client.
	StateSavingClient StateSavingMethod = "client"
)

// SavedView is one persisted view state.
type SavedView struct {
	Key       string    `json:"key"`
	ViewID    string    `json:"view_id"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore is the persistence contract for saved view state. Payloads are
// opaque to the store.
type StateStore interface {
	Put(ctx context.Context, view SavedView) error
	Get(ctx context.Context, key string) (SavedView, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	// List returns saved views for viewID ordered by key; an empty viewID lists all.
	List(ctx context.Context, viewID string) ([]SavedView, error)
	// Prune deletes views created before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ErrViewExpired is returned when a state key no longer resolves to a saved view.
var ErrViewExpired = errors.New("view state expired")

// ErrViewNotFound is returned when no view definition is registered for an id.
type ErrViewNotFound struct {
	ViewID string
}

func (e ErrViewNotFound) Error() string {
	return fmt.Sprintf("view %s not found", e.ViewID)
}
