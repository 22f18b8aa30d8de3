package usersync

import (
	"strings"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/samber/lo"
)

// Effect is what an event asks us to do. It is either UpsertUser or
// DeleteUser.
type Effect interface {
	effect()
}

type UpsertUser struct {
	User models.User
}

type DeleteUser struct {
	ExternalID string
}

func (UpsertUser) effect() {}
func (DeleteUser) effect() {}

// ChatUser is the registry record for an upserted user.
func (u UpsertUser) ChatUser() models.ChatUser {
	return models.ChatUser{
		ID:       u.User.ExternalID,
		Name:     u.User.Name,
		ImageURL: u.User.ImageURL,
	}
}

// Plan turns an event into an effect. It does no I/O.
func Plan(ev Event) (Effect, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	switch ev.Type {
	case IdentityCreated:
		email := primaryEmail(ev.Data)
		return UpsertUser{User: models.User{
			ExternalID: ev.Data.ID,
			Email:      email,
			Name:       displayName(ev.Data, email),
			ImageURL:   ev.Data.ImageURL,
		}}, nil
	case IdentityDeleted:
		return DeleteUser{ExternalID: ev.Data.ID}, nil
	default:
		return nil, apperr.Validation("unsupported identity event " + string(ev.Type))
	}
}

func primaryEmail(p Payload) string {
	addr, _ := lo.Find(p.EmailAddresses, func(e EmailAddress) bool {
		return strings.TrimSpace(e.EmailAddress) != ""
	})
	return strings.TrimSpace(addr.EmailAddress)
}

// displayName prefers "first last", then the email's local part, then id.
func displayName(p Payload, email string) string {
	if name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return p.ID
}
