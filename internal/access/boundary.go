package access

import (
	"context"
	"errors"
	"time"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultPageSize is how many channels we ask the provider for per page
// when walking every public channel. Stream caps a page at 30.
const DefaultPageSize = 30

// Boundary runs privileged operations on behalf of an identity. It checks
// ownership and membership itself and only then calls the gateway.
//
// It holds no mutable state. Two concurrent deletes of the same channel
// both pass the ownership check and race at the provider; that's the
// provider's consistency to resolve.
type Boundary struct {
	gateway  chat.Gateway
	tokenTTL time.Duration
	pageSize int
	logger   *zap.Logger
}

func NewBoundary(gateway chat.Gateway, tokenTTL time.Duration, logger *zap.Logger) *Boundary {
	return &Boundary{
		gateway:  gateway,
		tokenTTL: tokenTTL,
		pageSize: DefaultPageSize,
		logger:   logger,
	}
}

// IssueToken mints a chat session credential for id.
//
// The token carries no channel rights. Channel checks happen again on each
// privileged call below.
func (b *Boundary) IssueToken(id models.Identity) (chat.Token, error) {
	if !id.Authenticated() {
		return chat.Token{}, Unauthorized.Err("")
	}

	token, err := b.gateway.MintToken(id.ID, b.tokenTTL)
	if err != nil {
		return chat.Token{}, apperr.Provider("failed to generate chat token", err)
	}
	return token, nil
}

// SyncReport says what SyncPublicChannels did per channel.
type SyncReport struct {
	Joined        []string `json:"joined"`
	AlreadyMember []string `json:"already_member"`
	Failed        []string `json:"failed"`
}

// SyncPublicChannels makes id a member of every discoverable messaging
// channel.
//
// It keeps going after a failed add: one broken channel shouldn't keep a
// user out of the rest. Failures are collected and returned together as a
// single provider error once every channel has been tried. A failure to
// list channels stops the walk, since there's nothing left to try.
//
// Channels id already belongs to are skipped, so calling this again
// converges on the same membership with no duplicate-add errors.
func (b *Boundary) SyncPublicChannels(ctx context.Context, id models.Identity) (SyncReport, error) {
	report := SyncReport{
		Joined:        []string{},
		AlreadyMember: []string{},
		Failed:        []string{},
	}
	if !id.Authenticated() {
		return report, Unauthorized.Err("")
	}

	filter := chat.ChannelFilter{
		Type:         models.ChannelTypeMessaging,
		Discoverable: lo.ToPtr(true),
	}

	var errs error
	for offset := 0; ; offset += b.pageSize {
		page, err := b.gateway.QueryChannels(ctx, filter, chat.QueryOptions{
			Limit:  b.pageSize,
			Offset: offset,
			Sort:   chat.SortCreatedAt,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		for _, ch := range page {
			if err := b.confirmMembers(ctx, &ch, id.ID); err != nil {
				b.logger.Warn("failed to check public channel membership",
					zap.String("user_id", id.ID),
					zap.String("channel_id", ch.ID),
					zap.Error(err),
				)
				report.Failed = append(report.Failed, ch.ID)
				errs = multierr.Append(errs, err)
				continue
			}
			if IsMember(id, ch) {
				report.AlreadyMember = append(report.AlreadyMember, ch.ID)
				continue
			}
			if err := b.gateway.AddMembers(ctx, ch.ID, []string{id.ID}); err != nil {
				b.logger.Warn("failed to add user to public channel",
					zap.String("user_id", id.ID),
					zap.String("channel_id", ch.ID),
					zap.Error(err),
				)
				report.Failed = append(report.Failed, ch.ID)
				errs = multierr.Append(errs, err)
				continue
			}
			report.Joined = append(report.Joined, ch.ID)
		}

		if len(page) < b.pageSize {
			break
		}
	}

	if errs != nil {
		return report, apperr.Provider("failed to sync public channels", errs)
	}
	return report, nil
}

// DeleteResult is returned by a successful delete.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// DeleteChannelIfOwner deletes channelID if and only if id created it.
//
// Order matters: identity, then input, then existence, then ownership.
// A non-owner never reaches the gateway's delete, so the channel is left
// exactly as it was.
func (b *Boundary) DeleteChannelIfOwner(ctx context.Context, id models.Identity, channelID string, hard bool) (DeleteResult, error) {
	if !id.Authenticated() {
		return DeleteResult{}, Unauthorized.Err("")
	}
	if channelID == "" {
		return DeleteResult{}, apperr.Validation("channelId is required")
	}

	ch, err := b.lookup(ctx, channelID)
	if err != nil {
		return DeleteResult{}, err
	}

	if err := Decide(id, ch, ActionDelete).Err("only the channel owner can delete it"); err != nil {
		b.logger.Info("channel delete refused",
			zap.String("user_id", id.ID),
			zap.String("channel_id", channelID),
		)
		return DeleteResult{}, err
	}

	if err := b.gateway.DeleteChannel(ctx, channelID, hard); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			// Lost a race with another delete.
			return DeleteResult{}, apperr.Wrap(apperr.CodeNotFound, "channel not found", err)
		}
		return DeleteResult{}, apperr.Provider("failed to delete channel", err)
	}

	b.logger.Info("channel deleted",
		zap.String("user_id", id.ID),
		zap.String("channel_id", channelID),
		zap.Bool("hard", hard),
	)
	return DeleteResult{Deleted: true}, nil
}

// InviteMembers adds userIDs to a channel id owns. It returns how many were
// actually added; ids that are already members are skipped.
func (b *Boundary) InviteMembers(ctx context.Context, id models.Identity, channelID string, userIDs []string) (int, error) {
	if !id.Authenticated() {
		return 0, Unauthorized.Err("")
	}
	if channelID == "" {
		return 0, apperr.Validation("channelId is required")
	}
	invitees := lo.Uniq(lo.Compact(userIDs))
	if len(invitees) == 0 {
		return 0, apperr.Validation("userIds must contain at least one user")
	}

	ch, err := b.lookup(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if err := Decide(id, ch, ActionInvite).Err("only the channel owner can invite members"); err != nil {
		return 0, err
	}

	if err := b.confirmMembers(ctx, &ch, invitees...); err != nil {
		return 0, apperr.Provider("failed to check channel members", err)
	}
	fresh := lo.Without(invitees, ch.Members...)
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := b.gateway.AddMembers(ctx, channelID, fresh); err != nil {
		return 0, apperr.Provider("failed to invite members", err)
	}
	return len(fresh), nil
}

// JoinChannel adds id to a public channel. Private channels can only be
// joined by invite.
func (b *Boundary) JoinChannel(ctx context.Context, id models.Identity, channelID string) error {
	if !id.Authenticated() {
		return Unauthorized.Err("")
	}
	if channelID == "" {
		return apperr.Validation("channelId is required")
	}

	ch, err := b.lookup(ctx, channelID)
	if err != nil {
		return err
	}
	if err := b.confirmMembers(ctx, &ch, id.ID); err != nil {
		return apperr.Provider("failed to check channel membership", err)
	}
	if err := Decide(id, ch, ActionJoin).Err("private channels are invite-only"); err != nil {
		return err
	}
	if IsMember(id, ch) {
		return nil
	}

	if err := b.gateway.AddMembers(ctx, channelID, []string{id.ID}); err != nil {
		return apperr.Provider("failed to join channel", err)
	}
	return nil
}

// NextActiveChannel picks the channel a client should switch to after its
// active one goes away: the most recently active of id's memberships.
// Returns "" when id isn't in any channel.
func (b *Boundary) NextActiveChannel(ctx context.Context, id models.Identity) (string, error) {
	if !id.Authenticated() {
		return "", Unauthorized.Err("")
	}

	channels, err := b.gateway.QueryChannels(ctx,
		chat.ChannelFilter{Type: models.ChannelTypeMessaging, Member: id.ID},
		chat.QueryOptions{Limit: 1, Sort: chat.SortLastMessageAt, Descending: true},
	)
	if err != nil {
		return "", apperr.Provider("failed to load channels", err)
	}
	if len(channels) == 0 {
		return "", nil
	}
	return channels[0].ID, nil
}

// lookup fetches one messaging channel by id, or NotFound.
func (b *Boundary) lookup(ctx context.Context, channelID string) (models.Channel, error) {
	channels, err := b.gateway.QueryChannels(ctx,
		chat.ChannelFilter{ID: channelID, Type: models.ChannelTypeMessaging},
		chat.QueryOptions{Limit: 1},
	)
	if err != nil {
		return models.Channel{}, apperr.Provider("failed to look up channel", err)
	}
	if len(channels) == 0 {
		return models.Channel{}, apperr.New(apperr.CodeNotFound, "channel not found")
	}
	return channels[0], nil
}

// confirmMembers asks the provider about each of userIDs that ch's member
// list doesn't show, when that list is truncated. Confirmed ids are added
// to ch.Members so Decide and IsMember see the full answer.
func (b *Boundary) confirmMembers(ctx context.Context, ch *models.Channel, userIDs ...string) error {
	if !ch.MembersTruncated() {
		return nil
	}
	for _, userID := range lo.Without(userIDs, ch.Members...) {
		found, err := b.gateway.QueryChannels(ctx,
			chat.ChannelFilter{ID: ch.ID, Type: models.ChannelTypeMessaging, Member: userID},
			chat.QueryOptions{Limit: 1},
		)
		if err != nil {
			return err
		}
		if len(found) > 0 {
			ch.Members = append(ch.Members, userID)
		}
	}
	return nil
}
