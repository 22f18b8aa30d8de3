package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/access"
	"github.com/lalith-99/mehfil/internal/middleware"
	"go.uber.org/zap"
)

// ChatHandler serves /api/chat. Every route sits behind RequireIdentity,
// and every chat provider call goes through the boundary's checks.
type ChatHandler struct {
	boundary *access.Boundary
	logger   *zap.Logger
}

func NewChatHandler(boundary *access.Boundary, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{boundary: boundary, logger: logger}
}

// Token handles GET /api/chat/token
func (h *ChatHandler) Token(c *gin.Context) {
	token, err := h.boundary.IssueToken(middleware.GetIdentity(c))
	if err != nil {
		respondError(c, h.logger, err, "Failed to generate chat token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token.Value,
		"expires_at": token.ExpiresAt,
	})
}

// SyncPublicChannels handles POST /api/chat/sync-public-channels
//
// Clients call this after login so a new user lands in every public room.
func (h *ChatHandler) SyncPublicChannels(c *gin.Context) {
	id := middleware.GetIdentity(c)

	report, err := h.boundary.SyncPublicChannels(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "Failed to sync public channels")
		return
	}

	h.logger.Debug("public channels synced",
		zap.String("user_id", id.ID),
		zap.Int("joined", len(report.Joined)),
		zap.Int("already_member", len(report.AlreadyMember)),
	)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"joined":  len(report.Joined),
	})
}
