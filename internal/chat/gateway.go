//go:generate go run go.uber.org/mock/mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks

// Package chat defines the contract between Mehfil and the hosted chat
// provider. The provider owns channels, membership, messages and presence;
// everything here is a thin request to it.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/lalith-99/mehfil/internal/models"
)

// ErrNotFound is wrapped by gateway errors when the provider answers that
// the channel or user doesn't exist.
var ErrNotFound = errors.New("chat: not found")

// ChannelFilter narrows a channel query. Zero-valued fields don't filter.
type ChannelFilter struct {
	ID           string
	Type         string
	Discoverable *bool
	// Member restricts results to channels that include this user id.
	Member string
}

// SortField is a provider-side channel sort key.
type SortField string

const (
	SortLastMessageAt SortField = "last_message_at"
	// SortCreatedAt is stable under concurrent activity, so offset paging
	// over it neither skips nor repeats channels.
	SortCreatedAt SortField = "created_at"
)

// QueryOptions pages and orders a channel query. Limit 0 leaves the page
// size to the provider.
type QueryOptions struct {
	Limit  int
	Offset int
	Sort   SortField
	// Descending only applies when Sort is set.
	Descending bool
}

// ChannelSpec is what we send the provider to create a channel.
type ChannelSpec struct {
	ID          string
	Type        string
	Name        string
	Description string
	CreatedByID string
	Visibility  models.Visibility
	Members     []string
}

// Token is a signed, time-scoped session credential for the chat transport.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Gateway is everything the authorization boundary and the user-sync
// dispatcher need from the chat provider.
//
// It's injected rather than reached through a package-level client so the
// boundary can be tested against a double that simulates ownership and
// membership without network calls.
//
// Every method may fail with a provider error. None of them retry.
type Gateway interface {
	// MintToken signs a credential scoped to userID. It only authorizes
	// chat transport for that user; it says nothing about channels.
	MintToken(userID string, ttl time.Duration) (Token, error)

	// QueryChannels returns matching channels, or an empty slice.
	QueryChannels(ctx context.Context, filter ChannelFilter, opts QueryOptions) ([]models.Channel, error)

	// CreateChannel creates (or returns the existing) channel for spec.ID.
	CreateChannel(ctx context.Context, spec ChannelSpec) (*models.Channel, error)

	// AddMembers adds userIDs to the channel. Existing members are a no-op.
	AddMembers(ctx context.Context, channelID string, userIDs []string) error

	// DeleteChannel removes the channel. hard=false is a soft delete that
	// the provider can still restore; hard=true purges it.
	DeleteChannel(ctx context.Context, channelID string, hard bool) error

	// UpsertUser creates or updates a user in the provider's registry.
	UpsertUser(ctx context.Context, user models.ChatUser) error

	// DeleteUser removes a user from the provider's registry. A user the
	// provider doesn't know yields an error wrapping ErrNotFound.
	DeleteUser(ctx context.Context, userID string) error
}
