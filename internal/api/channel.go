package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/access"
	"github.com/lalith-99/mehfil/internal/middleware"
	"github.com/lalith-99/mehfil/internal/models"
)

// createChannelRequest is the body of POST /api/chat/channels.
//
// There is no owner field: the owner is whoever is calling.
type createChannelRequest struct {
	Name        string   `json:"name"`
	Visibility  string   `json:"visibility"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

// CreateChannel handles POST /api/chat/channels
func (h *ChatHandler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ch, err := h.boundary.CreateChannel(c.Request.Context(), middleware.GetIdentity(c), access.CreateChannelInput{
		Name:        req.Name,
		Visibility:  models.Visibility(req.Visibility),
		Description: req.Description,
		Members:     req.Members,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to create channel")
		return
	}

	c.JSON(http.StatusCreated, ch)
}

type deleteChannelRequest struct {
	ChannelID string `json:"channelId"`
	Hard      bool   `json:"hard"`
}

// DeleteChannel handles POST /api/chat/delete-channel
//
// Only the owner may delete. The boundary answers 403 for anyone else and
// 404 if the channel is already gone.
func (h *ChatHandler) DeleteChannel(c *gin.Context) {
	var req deleteChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "channelId is required")
		return
	}

	res, err := h.boundary.DeleteChannelIfOwner(c.Request.Context(), middleware.GetIdentity(c), req.ChannelID, req.Hard)
	if err != nil {
		respondError(c, h.logger, err, "Failed to delete channel")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": res.Deleted})
}

// ActiveChannel handles GET /api/chat/channels/active
//
// Returns the channel the client should show next, or null.
func (h *ChatHandler) ActiveChannel(c *gin.Context) {
	channelID, err := h.boundary.NextActiveChannel(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to load channels")
		return
	}

	if channelID == "" {
		c.JSON(http.StatusOK, gin.H{"channelId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channelId": channelID})
}
