package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/apperr"
	"github.com/lalith-99/mehfil/internal/middleware"
	"go.uber.org/zap"
)

// respondError writes {"message": ...} with the status for err's code.
// Server-side failures are logged with their cause; the client only ever
// sees the error's public message or fallback.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status := apperr.CodeOf(err).HTTPStatus()
	if status >= 500 {
		logger.Error(fallback,
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("user_id", middleware.GetIdentity(c).ID),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"message": apperr.PublicMessage(err, fallback)})
}

// badRequest is for bodies that don't even decode.
func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(apperr.CodeValidation.HTTPStatus(), gin.H{"message": message})
}
