// Package access is the authorization boundary between authenticated
// callers and the chat provider.
//
// Every privileged operation resolves to one of three outcomes before any
// provider call is made. Keeping Forbidden and Unauthorized apart is what
// lets a client tell "log in" from "you don't own this".
package access

import (
	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/samber/lo"
)

// Outcome of an authorization decision.
type Outcome int

const (
	Allowed Outcome = iota
	Forbidden
	Unauthorized
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Forbidden:
		return "forbidden"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Action is a privileged channel operation.
type Action string

const (
	ActionDelete Action = "delete"
	ActionInvite Action = "invite"
	ActionJoin   Action = "join"
)

// Decide is the single rulebook for channel-level authorization.
//
//   - no identity: Unauthorized, whatever the action.
//   - delete, invite: only the owner. Ownership is exact string equality
//     on OwnerID; a channel with no recorded owner is owned by nobody.
//   - join: anyone for public channels; for private ones only callers who
//     are already members (which makes the join a no-op).
func Decide(id models.Identity, ch models.Channel, action Action) Outcome {
	if !id.Authenticated() {
		return Unauthorized
	}

	switch action {
	case ActionDelete, ActionInvite:
		if IsOwner(id, ch) {
			return Allowed
		}
		return Forbidden
	case ActionJoin:
		if ch.Visibility == models.VisibilityPublic || IsMember(id, ch) {
			return Allowed
		}
		return Forbidden
	default:
		return Forbidden
	}
}

// IsOwner reports whether id created ch. No case folding.
func IsOwner(id models.Identity, ch models.Channel) bool {
	return ch.OwnerID != "" && ch.OwnerID == id.ID
}

// IsMember reports whether id is in ch's member list.
func IsMember(id models.Identity, ch models.Channel) bool {
	return lo.Contains(ch.Members, id.ID)
}

// Err converts a non-Allowed outcome into the matching typed error.
func (o Outcome) Err(message string) error {
	switch o {
	case Allowed:
		return nil
	case Unauthorized:
		return apperr.New(apperr.CodeUnauthorized, "unauthorized")
	default:
		return apperr.New(apperr.CodeForbidden, message)
	}
}
