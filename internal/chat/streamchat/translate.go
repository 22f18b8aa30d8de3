package streamchat

import (
	stream "github.com/GetStream/stream-chat-go/v7"
	"github.com/lalith-99/mehfil/internal/chat"
	"github.com/lalith-99/mehfil/internal/models"
)

// Custom channel data keys. Stream stores anything it doesn't know about
// as free-form channel data; these are the ones Mehfil writes and reads.
const (
	fieldName         = "name"
	fieldDescription  = "description"
	fieldDiscoverable = "discoverable"
	fieldPrivate      = "private"
	fieldCreatedByID  = "created_by_id"
)

// buildFilter turns a ChannelFilter into Stream's Mongo-style filter.
func buildFilter(f chat.ChannelFilter) map[string]interface{} {
	out := make(map[string]interface{})
	if f.ID != "" {
		out["id"] = map[string]interface{}{"$eq": f.ID}
	}
	if f.Type != "" {
		out["type"] = f.Type
	}
	if f.Discoverable != nil {
		out[fieldDiscoverable] = *f.Discoverable
	}
	if f.Member != "" {
		out["members"] = map[string]interface{}{"$in": []string{f.Member}}
	}
	return out
}

// channelData is the custom data written on create. Exactly one of
// discoverable/private is set.
func channelData(spec chat.ChannelSpec) map[string]interface{} {
	data := map[string]interface{}{
		fieldName:        spec.Name,
		fieldCreatedByID: spec.CreatedByID,
	}
	if spec.Description != "" {
		data[fieldDescription] = spec.Description
	}
	switch spec.Visibility {
	case models.VisibilityPublic:
		data[fieldDiscoverable] = true
	case models.VisibilityPrivate:
		data[fieldPrivate] = true
	}
	return data
}

// toChannel projects a Stream channel onto models.Channel.
func toChannel(ch *stream.Channel) models.Channel {
	out := models.Channel{
		ID:            ch.ID,
		Type:          ch.Type,
		Name:          stringField(ch.ExtraData, fieldName),
		Description:   stringField(ch.ExtraData, fieldDescription),
		OwnerID:       ownerID(ch),
		Visibility:    visibility(ch.ExtraData),
		Members:       memberIDs(ch),
		MemberCount:   ch.MemberCount,
		LastMessageAt: ch.LastMessageAt,
	}
	if out.Type == "" {
		out.Type = models.ChannelTypeMessaging
	}
	return out
}

// ownerID absorbs the two ways Stream reports a channel's creator:
// created_by.id when the channel was created server-side with a user, and
// created_by_id when a client set it as custom data.
func ownerID(ch *stream.Channel) string {
	if ch.CreatedBy != nil && ch.CreatedBy.ID != "" {
		return ch.CreatedBy.ID
	}
	return stringField(ch.ExtraData, fieldCreatedByID)
}

// visibility is public only for discoverable channels that aren't also
// flagged private. Everything else is invite-only.
func visibility(data map[string]interface{}) models.Visibility {
	if boolField(data, fieldDiscoverable) && !boolField(data, fieldPrivate) {
		return models.VisibilityPublic
	}
	return models.VisibilityPrivate
}

func memberIDs(ch *stream.Channel) []string {
	ids := make([]string, 0, len(ch.Members))
	for _, m := range ch.Members {
		if m == nil {
			continue
		}
		switch {
		case m.UserID != "":
			ids = append(ids, m.UserID)
		case m.User != nil && m.User.ID != "":
			ids = append(ids, m.User.ID)
		}
	}
	return ids
}

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]interface{}, key string) bool {
	if data == nil {
		return false
	}
	b, _ := data[key].(bool)
	return b
}
