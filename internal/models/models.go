package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is who the identity provider says is calling.
//
// ID is opaque and stable. An empty ID means the request carried no
// valid credential. Every privileged operation treats that as
// Unauthorized before touching the chat provider.
type Identity struct {
	ID string `json:"id"`
}

// Authenticated reports whether the identity provider resolved a caller.
func (i Identity) Authenticated() bool {
	return i.ID != ""
}

// Visibility of a channel. Fixed at creation, never transitions.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is one of the two supported visibilities.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}

// ChannelTypeMessaging is the only chat provider channel type Mehfil uses.
const ChannelTypeMessaging = "messaging"

// Channel is our projection of a chat provider channel.
//
// The provider owns and persists the real record. We only read what we
// need for authorization: who owns it, who's in it, and whether it's
// public.
//
// OwnerID is normalized at the gateway boundary. The provider exposes the
// creator as either created_by.id or created_by_id depending on how the
// channel was created; callers here never see that inconsistency. An empty
// OwnerID means the provider gave us neither, and such a channel has no
// owner at all.
//
// MemberCount is the provider's total. On large channels the provider
// truncates Members, so it can hold fewer ids than MemberCount.
type Channel struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	OwnerID       string     `json:"owner_id"`
	Visibility    Visibility `json:"visibility"`
	Members       []string   `json:"members"`
	MemberCount   int        `json:"member_count"`
	LastMessageAt time.Time  `json:"last_message_at,omitempty"`
}

// MembersTruncated reports whether Members is only part of the roster.
func (c Channel) MembersTruncated() bool {
	return c.MemberCount > len(c.Members)
}

// User is the local record for someone the identity provider knows about.
//
// ExternalID is the identity provider's id; it's the upsert key. ID is our
// own primary key so the table doesn't depend on the provider's id format.
type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChatUser is the shape the chat provider's user registry needs.
type ChatUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image,omitempty"`
}
