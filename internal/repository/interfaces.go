//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_repository.go -package=mocks

package repository

import (
	"context"
	"time"

	"github.com/lalith-99/mehfil/internal/models"
)

// Every method takes ctx first: these all hit the network, and a cancelled
// request (or a shut-down consumer) should cancel the query too.

// UserRepository stores the local copy of identity-provider users.
//
// Writes are keyed by ExternalID and are replay-safe: upserting the same
// user twice leaves one row, deleting a missing user is not an error.
type UserRepository interface {
	// Upsert inserts or updates the user identified by u.ExternalID and
	// returns the stored row.
	Upsert(ctx context.Context, u models.User) (*models.User, error)

	// DeleteByExternalID removes the user. Reports whether a row existed.
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)

	// GetByExternalID returns nil, nil if not found.
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// EventLedger remembers which identity events have already been handled,
// so a redelivered webhook doesn't redo its work.
type EventLedger interface {
	// Claim marks eventID as in progress. false means someone already has.
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Release forgets eventID so a failed event can be delivered again.
	Release(ctx context.Context, eventID string) error
}
