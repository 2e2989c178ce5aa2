package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no live paste exists for an identifier.
	// Expired pastes are reported with the same error.
	ErrNotFound = errors.New("paste not found")
	// ErrConflict is returned by Create when the identifier is already taken.
	ErrConflict = errors.New("paste identifier already exists")
	// ErrUnavailable marks failures talking to the underlying backend.
	ErrUnavailable = errors.New("store unavailable")
)

// Paste represents a stored paste entry.
type Paste struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasExpiration reports whether the paste has an expiry set.
func (p Paste) HasExpiration() bool {
	return !p.ExpiresAt.IsZero()
}

// LiveAt reports whether the paste may be served at t. A paste whose expiry
// equals t is already stale.
func (p Paste) LiveAt(t time.Time) bool {
	return !p.HasExpiration() || p.ExpiresAt.After(t)
}

// ExpiredAt reports whether the paste is eligible for reclamation at t.
func (p Paste) ExpiredAt(t time.Time) bool {
	return p.HasExpiration() && !p.ExpiresAt.After(t)
}

// Store defines the storage backend contract.
type Store interface {
	// Create persists a new paste. It fails with ErrConflict when a record
	// with the same ID exists, whether live or stale.
	Create(ctx context.Context, paste *Paste) error
	// Get returns the paste if it exists and is live at asOf.
	Get(ctx context.Context, id string, asOf time.Time) (*Paste, error)
	// ListExpired returns the IDs of pastes whose expiry is set and <= asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]string, error)
	// DeleteIfExpired removes the paste only if it is expired at asOf.
	DeleteIfExpired(ctx context.Context, id string, asOf time.Time) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
