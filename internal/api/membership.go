package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/middleware"
)

type inviteRequest struct {
	UserIDs []string `json:"userIds"`
}

// Invite handles POST /api/chat/channels/:id/invite
func (h *ChatHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "userIds must contain at least one user")
		return
	}

	added, err := h.boundary.InviteMembers(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), req.UserIDs)
	if err != nil {
		respondError(c, h.logger, err, "Failed to invite members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "added": added})
}

// Join handles POST /api/chat/channels/:id/join
//
// Joining twice is fine; the second call is a no-op.
func (h *ChatHandler) Join(c *gin.Context) {
	if err := h.boundary.JoinChannel(c.Request.Context(), middleware.GetIdentity(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to join channel")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
