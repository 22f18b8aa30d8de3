// Package streamchat implements chat.Gateway on top of the Stream Chat
// server SDK.
package streamchat

import (
	"context"
	"fmt"
	"time"

	stream "github.com/GetStream/stream-chat-go/v7"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/lalith-99/mehfil/internal/chat/streamchat"

// Gateway talks to Stream with server-side credentials. The API secret
// never leaves this process; clients only get tokens minted from it.
type Gateway struct {
	client *stream.Client
	tracer trace.Tracer
	logger *zap.Logger
}

var _ chat.Gateway = (*Gateway)(nil)

// New builds a Stream client from the API key/secret pair.
func New(apiKey, apiSecret string, logger *zap.Logger) (*Gateway, error) {
	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("create stream client: %w", err)
	}
	return &Gateway{
		client: client,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}, nil
}

func (g *Gateway) MintToken(userID string, ttl time.Duration) (chat.Token, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	token, err := g.client.CreateToken(userID, expiresAt, now)
	if err != nil {
		return chat.Token{}, fmt.Errorf("create token: %w", err)
	}
	return chat.Token{Value: token, ExpiresAt: expiresAt}, nil
}

func (g *Gateway) QueryChannels(ctx context.Context, filter chat.ChannelFilter, opts chat.QueryOptions) (_ []models.Channel, err error) {
	ctx, span := g.tracer.Start(ctx, "stream.QueryChannels",
		trace.WithAttributes(
			attribute.String("chat.filter.id", filter.ID),
			attribute.String("chat.filter.member", filter.Member),
			attribute.Int("chat.query.limit", opts.Limit),
			attribute.Int("chat.query.offset", opts.Offset),
		))
	defer func() { endSpan(span, err) }()

	q := &stream.QueryOption{
		Filter: buildFilter(filter),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}

	var sorts []*stream.SortOption
	if opts.Sort != "" {
		direction := 1
		if opts.Descending {
			direction = -1
		}
		sorts = append(sorts, &stream.SortOption{Field: string(opts.Sort), Direction: direction})
	}

	resp, err := g.client.QueryChannels(ctx, q, sorts...)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}

	channels := make([]models.Channel, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		if ch == nil {
			continue
		}
		channels = append(channels, toChannel(ch))
	}
	span.SetAttributes(attribute.Int("chat.query.results", len(channels)))
	return channels, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, spec chat.ChannelSpec) (_ *models.Channel, err error) {
	ctx, span := g.tracer.Start(ctx, "stream.CreateChannel",
		trace.WithAttributes(
			attribute.String("chat.channel.id", spec.ID),
			attribute.String("chat.channel.visibility", string(spec.Visibility)),
		))
	defer func() { endSpan(span, err) }()

	resp, err := g.client.CreateChannel(ctx, spec.Type, spec.ID, spec.CreatedByID, &stream.ChannelRequest{
		Members:   spec.Members,
		ExtraData: channelData(spec),
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	if resp.Channel == nil {
		return nil, fmt.Errorf("create channel: empty response for %q", spec.ID)
	}

	ch := toChannel(resp.Channel)
	// The create response doesn't always echo custom fields back.
	if ch.OwnerID == "" {
		ch.OwnerID = spec.CreatedByID
	}
	if ch.Name == "" {
		ch.Name = spec.Name
	}
	ch.Visibility = spec.Visibility
	return &ch, nil
}

func (g *Gateway) AddMembers(ctx context.Context, channelID string, userIDs []string) (err error) {
	ctx, span := g.tracer.Start(ctx, "stream.AddMembers",
		trace.WithAttributes(
			attribute.String("chat.channel.id", channelID),
			attribute.Int("chat.members.count", len(userIDs)),
		))
	defer func() { endSpan(span, err) }()

	if _, err := g.client.Channel(models.ChannelTypeMessaging, channelID).AddMembers(ctx, userIDs); err != nil {
		return fmt.Errorf("add members to %s: %w", channelID, err)
	}
	return nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID string, hard bool) (err error) {
	ctx, span := g.tracer.Start(ctx, "stream.DeleteChannel",
		trace.WithAttributes(
			attribute.String("chat.channel.id", channelID),
			attribute.Bool("chat.delete.hard", hard),
		))
	defer func() { endSpan(span, err) }()

	if hard {
		// Hard deletes only exist on the batch endpoint. It runs as an
		// async task on Stream's side; we don't wait for it.
		cid := models.ChannelTypeMessaging + ":" + channelID
		if _, err := g.client.DeleteChannels(ctx, []string{cid}, true); err != nil {
			return fmt.Errorf("hard delete %s: %w", channelID, err)
		}
		return nil
	}

	if _, err := g.client.Channel(models.ChannelTypeMessaging, channelID).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", channelID, classify(err))
	}
	return nil
}

func (g *Gateway) UpsertUser(ctx context.Context, user models.ChatUser) (err error) {
	ctx, span := g.tracer.Start(ctx, "stream.UpsertUser",
		trace.WithAttributes(attribute.String("chat.user.id", user.ID)))
	defer func() { endSpan(span, err) }()

	_, err = g.client.UpsertUser(ctx, &stream.User{
		ID:    user.ID,
		Name:  user.Name,
		Image: user.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	g.logger.Debug("stream user upserted", zap.String("user_id", user.ID))
	return nil
}

func (g *Gateway) DeleteUser(ctx context.Context, userID string) (err error) {
	ctx, span := g.tracer.Start(ctx, "stream.DeleteUser",
		trace.WithAttributes(attribute.String("chat.user.id", userID)))
	defer func() { endSpan(span, err) }()

	if _, err := g.client.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, classify(err))
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
