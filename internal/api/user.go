package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/middleware"
	"github.com/lalith-99/mehfil/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves the caller's local user record.
type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// GetMe handles GET /api/users/me
//
// The row is written by the identity webhook, so a user who signed up a
// moment ago may get a 404 until the event lands.
func (h *UserHandler) GetMe(c *gin.Context) {
	id := middleware.GetIdentity(c)

	user, err := h.repo.GetByExternalID(c.Request.Context(), id.ID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to get user")
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}
