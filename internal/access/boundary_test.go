package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/mocks"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const tokenTTL = time.Hour

func newBoundary(t *testing.T) (*Boundary, *mocks.MockGateway) {
	t.Helper()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	return NewBoundary(gw, tokenTTL, zap.NewNop()), gw
}

func lookupFilter(id string) chat.ChannelFilter {
	return chat.ChannelFilter{ID: id, Type: models.ChannelTypeMessaging}
}

var lookupOpts = chat.QueryOptions{Limit: 1}

func memberFilter(channelID, userID string) chat.ChannelFilter {
	return chat.ChannelFilter{ID: channelID, Type: models.ChannelTypeMessaging, Member: userID}
}

// bigProjX is projX as the provider returns it once the roster outgrows
// the member list it embeds in channel responses.
func bigProjX() models.Channel {
	ch := projX()
	ch.MemberCount = 250
	return ch
}

func projX() models.Channel {
	return models.Channel{
		ID:         "proj-x",
		Type:       models.ChannelTypeMessaging,
		Name:       "proj-x",
		OwnerID:    "u1",
		Visibility: models.VisibilityPrivate,
		Members:    []string{"u1"},
	}
}

func TestBoundary_IssueToken(t *testing.T) {
	t.Run("should refuse without identity and never mint", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().MintToken(gomock.Any(), gomock.Any()).Times(0)

		token, err := b.IssueToken(models.Identity{})

		require.ErrorIs(t, err, apperr.ErrUnauthorized)
		require.Empty(t, token.Value)
	})

	t.Run("should mint a token scoped to the caller", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		expiry := time.Now().Add(tokenTTL)
		gw.EXPECT().MintToken("u1", tokenTTL).Return(chat.Token{Value: "signed", ExpiresAt: expiry}, nil)

		token, err := b.IssueToken(models.Identity{ID: "u1"})

		req.NoError(err)
		req.Equal("signed", token.Value)
		req.Equal(expiry, token.ExpiresAt)
	})

	t.Run("should report provider failures", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().MintToken("u1", tokenTTL).Return(chat.Token{}, errors.New("bad secret"))

		_, err := b.IssueToken(models.Identity{ID: "u1"})

		require.ErrorIs(t, err, apperr.ErrProvider)
	})
}

func TestBoundary_SyncPublicChannels(t *testing.T) {
	publicFilter := chat.ChannelFilter{Type: models.ChannelTypeMessaging, Discoverable: lo.ToPtr(true)}
	u := models.Identity{ID: "u1"}

	t.Run("should refuse without identity", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.SyncPublicChannels(context.Background(), models.Identity{})

		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("should walk every page and add only where missing", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		b.pageSize = 2
		ctx := context.Background()

		gw.EXPECT().QueryChannels(ctx, publicFilter, chat.QueryOptions{Limit: 2, Offset: 0, Sort: chat.SortCreatedAt}).Return([]models.Channel{
			{ID: "general", Members: []string{"u1", "u2"}},
			{ID: "random", Members: []string{"u2"}},
		}, nil)
		gw.EXPECT().QueryChannels(ctx, publicFilter, chat.QueryOptions{Limit: 2, Offset: 2, Sort: chat.SortCreatedAt}).Return([]models.Channel{
			{ID: "announcements"},
		}, nil)
		gw.EXPECT().AddMembers(ctx, "random", []string{"u1"}).Return(nil)
		gw.EXPECT().AddMembers(ctx, "announcements", []string{"u1"}).Return(nil)

		report, err := b.SyncPublicChannels(ctx, u)

		req.NoError(err)
		req.Equal([]string{"random", "announcements"}, report.Joined)
		req.Equal([]string{"general"}, report.AlreadyMember)
		req.Empty(report.Failed)
	})

	t.Run("should be idempotent", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		ctx := context.Background()

		// Provider state after the first call: u1 wasn't in "random" yet.
		members := map[string][]string{"general": {"u1"}, "random": {"u2"}}
		gw.EXPECT().QueryChannels(ctx, publicFilter, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ chat.ChannelFilter, _ chat.QueryOptions) ([]models.Channel, error) {
				return []models.Channel{
					{ID: "general", Members: members["general"]},
					{ID: "random", Members: members["random"]},
				}, nil
			}).Times(2)
		gw.EXPECT().AddMembers(ctx, "random", []string{"u1"}).DoAndReturn(
			func(_ context.Context, channelID string, ids []string) error {
				members[channelID] = append(members[channelID], ids...)
				return nil
			}).Times(1)

		first, err := b.SyncPublicChannels(ctx, u)
		req.NoError(err)
		second, err := b.SyncPublicChannels(ctx, u)
		req.NoError(err)

		req.Equal([]string{"random"}, first.Joined)
		req.Empty(second.Joined)
		req.ElementsMatch([]string{"general", "random"}, second.AlreadyMember)
	})

	t.Run("should keep going after a failed add and report it", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		ctx := context.Background()

		gw.EXPECT().QueryChannels(ctx, publicFilter, gomock.Any()).Return([]models.Channel{
			{ID: "broken"}, {ID: "fine"},
		}, nil)
		gw.EXPECT().AddMembers(ctx, "broken", []string{"u1"}).Return(errors.New("channel frozen"))
		gw.EXPECT().AddMembers(ctx, "fine", []string{"u1"}).Return(nil)

		report, err := b.SyncPublicChannels(ctx, u)

		req.ErrorIs(err, apperr.ErrProvider)
		req.Contains(err.Error(), "channel frozen")
		req.Equal([]string{"broken"}, report.Failed)
		req.Equal([]string{"fine"}, report.Joined)
	})

	t.Run("should check membership on channels with a truncated member list", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		ctx := context.Background()

		gw.EXPECT().QueryChannels(ctx, publicFilter, gomock.Any()).Return([]models.Channel{
			{ID: "town-square", Members: []string{"u2", "u3"}, MemberCount: 500},
			{ID: "lobby", Members: []string{"u2"}, MemberCount: 400},
		}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("town-square", "u1"), lookupOpts).
			Return([]models.Channel{{ID: "town-square"}}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("lobby", "u1"), lookupOpts).Return(nil, nil)
		gw.EXPECT().AddMembers(ctx, "lobby", []string{"u1"}).Return(nil)

		report, err := b.SyncPublicChannels(ctx, u)

		req.NoError(err)
		req.Equal([]string{"town-square"}, report.AlreadyMember)
		req.Equal([]string{"lobby"}, report.Joined)
	})

	t.Run("should fail when channels can't be listed", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(gomock.Any(), publicFilter, gomock.Any()).Return(nil, errors.New("timeout"))
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.SyncPublicChannels(context.Background(), u)

		require.ErrorIs(t, err, apperr.ErrProvider)
	})
}

func TestBoundary_DeleteChannelIfOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("should forbid a non-owner and leave the channel alone", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().DeleteChannel(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u2"}, "proj-x", false)

		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should soft delete for the owner", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().DeleteChannel(ctx, "proj-x", false).Return(nil)

		res, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "proj-x", false)

		req.NoError(err)
		req.True(res.Deleted)
	})

	t.Run("should pass the hard flag through", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().DeleteChannel(ctx, "proj-x", true).Return(nil)

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "proj-x", true)

		require.NoError(t, err)
	})

	t.Run("should report not found when the channel vanishes before the delete", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().DeleteChannel(ctx, "proj-x", false).Return(fmt.Errorf("delete proj-x: %w", chat.ErrNotFound))

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "proj-x", false)

		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("should report not found for any identity", func(t *testing.T) {
		for _, who := range []string{"u1", "u2", "anyone"} {
			b, gw := newBoundary(t)
			gw.EXPECT().QueryChannels(ctx, lookupFilter("does-not-exist"), lookupOpts).Return([]models.Channel{}, nil)
			gw.EXPECT().DeleteChannel(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: who}, "does-not-exist", false)

			require.ErrorIs(t, err, apperr.ErrNotFound, who)
		}
	})

	t.Run("should forbid when the owner is unknown", func(t *testing.T) {
		b, gw := newBoundary(t)
		orphan := projX()
		orphan.OwnerID = ""
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{orphan}, nil)

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "proj-x", false)

		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should reject a missing channel id without calling the provider", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "", false)

		require.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("should check identity before anything else", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{}, "", false)

		require.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("should surface provider failures", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().DeleteChannel(ctx, "proj-x", false).Return(errors.New("503"))

		_, err := b.DeleteChannelIfOwner(ctx, models.Identity{ID: "u1"}, "proj-x", false)

		require.ErrorIs(t, err, apperr.ErrProvider)
	})
}

func TestBoundary_InviteMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("should forbid non-owners", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := b.InviteMembers(ctx, models.Identity{ID: "u2"}, "proj-x", []string{"u2"})

		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should add only users who aren't members yet", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().AddMembers(ctx, "proj-x", []string{"u2", "u3"}).Return(nil)

		added, err := b.InviteMembers(ctx, models.Identity{ID: "u1"}, "proj-x", []string{"u2", "u1", "u3", "u2", ""})

		req.NoError(err)
		req.Equal(2, added)
	})

	t.Run("should not call the provider when everyone is already in", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		added, err := b.InviteMembers(ctx, models.Identity{ID: "u1"}, "proj-x", []string{"u1"})

		require.NoError(t, err)
		require.Zero(t, added)
	})

	t.Run("should not count members missing from a truncated list", func(t *testing.T) {
		req := require.New(t)
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{bigProjX()}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("proj-x", "u2"), lookupOpts).
			Return([]models.Channel{{ID: "proj-x"}}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("proj-x", "u3"), lookupOpts).Return(nil, nil)
		gw.EXPECT().AddMembers(ctx, "proj-x", []string{"u3"}).Return(nil)

		added, err := b.InviteMembers(ctx, models.Identity{ID: "u1"}, "proj-x", []string{"u2", "u3"})

		req.NoError(err)
		req.Equal(1, added)
	})

	t.Run("should reject an empty invite list", func(t *testing.T) {
		b, _ := newBoundary(t)

		_, err := b.InviteMembers(ctx, models.Identity{ID: "u1"}, "proj-x", []string{""})

		require.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestBoundary_JoinChannel(t *testing.T) {
	ctx := context.Background()
	general := models.Channel{ID: "general", OwnerID: "u1", Visibility: models.VisibilityPublic, Members: []string{"u1"}}

	t.Run("should let anyone join a public channel", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("general"), lookupOpts).Return([]models.Channel{general}, nil)
		gw.EXPECT().AddMembers(ctx, "general", []string{"u7"}).Return(nil)

		require.NoError(t, b.JoinChannel(ctx, models.Identity{ID: "u7"}, "general"))
	})

	t.Run("should be a no-op for existing members", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("general"), lookupOpts).Return([]models.Channel{general}, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		require.NoError(t, b.JoinChannel(ctx, models.Identity{ID: "u1"}, "general"))
	})

	t.Run("should keep private channels invite-only", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{projX()}, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		err := b.JoinChannel(ctx, models.Identity{ID: "u2"}, "proj-x")

		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should let members of a large private channel rejoin", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{bigProjX()}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("proj-x", "u2"), lookupOpts).
			Return([]models.Channel{{ID: "proj-x"}}, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		require.NoError(t, b.JoinChannel(ctx, models.Identity{ID: "u2"}, "proj-x"))
	})

	t.Run("should still refuse outsiders of a large private channel", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("proj-x"), lookupOpts).Return([]models.Channel{bigProjX()}, nil)
		gw.EXPECT().QueryChannels(ctx, memberFilter("proj-x", "u9"), lookupOpts).Return(nil, nil)
		gw.EXPECT().AddMembers(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		err := b.JoinChannel(ctx, models.Identity{ID: "u9"}, "proj-x")

		require.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("should report unknown channels", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, lookupFilter("nope"), lookupOpts).Return(nil, nil)

		err := b.JoinChannel(ctx, models.Identity{ID: "u2"}, "nope")

		require.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestBoundary_NextActiveChannel(t *testing.T) {
	ctx := context.Background()
	filter := chat.ChannelFilter{Type: models.ChannelTypeMessaging, Member: "u1"}
	opts := chat.QueryOptions{Limit: 1, Sort: chat.SortLastMessageAt, Descending: true}

	t.Run("should pick the most recently active membership", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, filter, opts).Return([]models.Channel{{ID: "random"}}, nil)

		next, err := b.NextActiveChannel(ctx, models.Identity{ID: "u1"})

		require.NoError(t, err)
		require.Equal(t, "random", next)
	})

	t.Run("should return nothing when the user has no channels", func(t *testing.T) {
		b, gw := newBoundary(t)
		gw.EXPECT().QueryChannels(ctx, filter, opts).Return([]models.Channel{}, nil)

		next, err := b.NextActiveChannel(ctx, models.Identity{ID: "u1"})

		require.NoError(t, err)
		require.Empty(t, next)
	})
}
