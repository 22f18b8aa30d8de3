package access

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	MinChannelNameLen = 3
	MaxChannelNameLen = 22
	MaxChannelIDLen   = 20
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedChar = regexp.MustCompile(`[^a-z0-9_-]`)
)

// CreateChannelInput is what a caller asks for. The creator is implied by
// the identity and can't be overridden.
type CreateChannelInput struct {
	Name        string
	Visibility  models.Visibility
	Description string
	Members     []string
}

// ChannelID derives the provider channel id from a display name:
// lowercased, whitespace runs to '-', anything outside [a-z0-9_-] dropped,
// cut to MaxChannelIDLen.
func ChannelID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = whitespaceRun.ReplaceAllString(id, "-")
	id = disallowedChar.ReplaceAllString(id, "")
	if len(id) > MaxChannelIDLen {
		id = id[:MaxChannelIDLen]
	}
	return id
}

// ValidateChannelName returns a client-facing reason when name is unusable.
func ValidateChannelName(name string) error {
	trimmed := strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n == 0:
		return apperr.Validation("channel name is required")
	case n < MinChannelNameLen:
		return apperr.Validation("channel name must be at least 3 characters long")
	case n > MaxChannelNameLen:
		return apperr.Validation("channel name must be at most 22 characters long")
	}
	if ChannelID(trimmed) == "" {
		return apperr.Validation("channel name must contain at least one letter or digit")
	}
	return nil
}

// CreateChannel creates a messaging channel owned by id.
//
// Visibility is fixed here for the channel's whole life. The creator is
// always a member; requested members are de-duplicated.
func (b *Boundary) CreateChannel(ctx context.Context, id models.Identity, in CreateChannelInput) (*models.Channel, error) {
	if !id.Authenticated() {
		return nil, Unauthorized.Err("")
	}
	if err := ValidateChannelName(in.Name); err != nil {
		return nil, err
	}
	if !in.Visibility.Valid() {
		return nil, apperr.Validation("visibility must be either public or private")
	}

	name := strings.TrimSpace(in.Name)
	spec := chat.ChannelSpec{
		ID:          ChannelID(name),
		Type:        models.ChannelTypeMessaging,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedByID: id.ID,
		Visibility:  in.Visibility,
		Members:     lo.Uniq(append([]string{id.ID}, lo.Compact(in.Members)...)),
	}

	// The provider's create is get-or-create; without this check a second
	// caller would silently land in someone else's channel.
	_, err := b.lookup(ctx, spec.ID)
	switch {
	case err == nil:
		return nil, apperr.New(apperr.CodeConflict, "a channel with this name already exists")
	case apperr.CodeOf(err) != apperr.CodeNotFound:
		return nil, err
	}

	ch, err := b.gateway.CreateChannel(ctx, spec)
	if err != nil {
		return nil, apperr.Provider("failed to create channel", err)
	}

	b.logger.Info("channel created",
		zap.String("user_id", id.ID),
		zap.String("channel_id", ch.ID),
		zap.String("visibility", string(in.Visibility)),
	)
	return ch, nil
}
