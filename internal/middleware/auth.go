package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/auth"
	"github.com/lalith-99/mehfil/internal/models"
	"go.uber.org/zap"
)

const (
	ContextKeyIdentity  = "identity"
	ContextKeySessionID = "session_id"
)

// TokenVerifier is the part of auth.Verifier the middleware uses.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// Authenticate resolves the caller's identity from a bearer token.
//
// It never rejects a request by itself. A missing or bad token just leaves
// the request unauthenticated, and RequireIdentity decides what that means
// for a given route. Public routes (health, webhooks) can sit behind the
// same middleware.
func Authenticate(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			logger.Debug("rejected bearer token",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Set(ContextKeyIdentity, models.Identity{ID: claims.Subject})
		c.Set(ContextKeySessionID, claims.SessionID)
		c.Next()
	}
}

// RequireIdentity stops unauthenticated requests with a 401 before any
// handler, and so before any chat provider call.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetIdentity(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Unauthorized - you must be logged in",
			})
			return
		}
		c.Next()
	}
}

// GetIdentity returns the resolved identity, or the zero Identity when the
// request is unauthenticated.
func GetIdentity(c *gin.Context) models.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return models.Identity{}
	}
	id, ok := val.(models.Identity)
	if !ok {
		return models.Identity{}
	}
	return id
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
