// Package usersync keeps the local user table and the chat provider's user
// registry in step with the identity provider.
//
// Events arrive either as signed webhooks or off an AMQP queue. Both paths
// decode into an Event and hand it to a Dispatcher.
package usersync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lalith-99/mehfil/internal/apperr"
)

// EventType is the normalized name of an identity event.
type EventType string

const (
	IdentityCreated EventType = "identity.created"
	IdentityDeleted EventType = "identity.deleted"
)

// aliases maps the names identity providers actually send onto ours.
var aliases = map[string]EventType{
	"identity.created":   IdentityCreated,
	"identity.deleted":   IdentityDeleted,
	"user.created":       IdentityCreated,
	"user.deleted":       IdentityDeleted,
	"clerk/user.created": IdentityCreated,
	"clerk/user.deleted": IdentityDeleted,
}

type EmailAddress struct {
	EmailAddress string `json:"email_address"`
}

// Payload is the identity record carried by an event. Deletes only carry ID.
type Payload struct {
	ID             string         `json:"id" validate:"required"`
	EmailAddresses []EmailAddress `json:"email_addresses"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	ImageURL       string         `json:"image_url"`
}

type Event struct {
	Type EventType `json:"type" validate:"required,oneof=identity.created identity.deleted"`
	Data Payload   `json:"data"`
}

var validate = validator.New()

// Decode parses a raw event body, maps provider event names onto EventType,
// and validates the result. Every failure is a validation error: the body
// will never become valid by being retried.
func Decode(body []byte) (Event, error) {
	var raw struct {
		Type string  `json:"type"`
		Data Payload `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Event{}, apperr.Wrap(apperr.CodeValidation, "malformed identity event", err)
	}

	t, ok := aliases[strings.TrimSpace(raw.Type)]
	if !ok {
		return Event{}, apperr.Validation(fmt.Sprintf("unsupported identity event %q", raw.Type))
	}

	ev := Event{Type: t, Data: raw.Data}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate checks the event's required fields.
func (e Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid identity event", err)
	}
	return nil
}
