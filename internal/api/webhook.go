package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/mehfil/internal/usersync"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// EventDispatcher applies a decoded identity event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventID string, ev usersync.Event) (usersync.Result, error)
}

// WebhookHandler receives identity provider webhooks.
type WebhookHandler struct {
	verifier   *usersync.SignatureVerifier
	dispatcher EventDispatcher
	logger     *zap.Logger
}

func NewWebhookHandler(verifier *usersync.SignatureVerifier, dispatcher EventDispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, dispatcher: dispatcher, logger: logger}
}

// Identity handles POST /api/webhooks/identity
//
// The signature covers the raw body, so it's read whole before any JSON
// decoding. A 5xx tells the sender to retry; a 4xx tells it not to.
func (h *WebhookHandler) Identity(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "payload too large"})
			return
		}
		badRequest(c, "unreadable payload")
		return
	}

	eventID := c.GetHeader(usersync.HeaderID)
	if err := h.verifier.Verify(eventID, c.GetHeader(usersync.HeaderTimestamp), c.GetHeader(usersync.HeaderSignature), body); err != nil {
		h.logger.Warn("webhook signature rejected",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		respondError(c, h.logger, err, "invalid webhook signature")
		return
	}

	ev, err := usersync.Decode(body)
	if err != nil {
		h.logger.Warn("webhook payload rejected",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		respondError(c, h.logger, err, "invalid payload")
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), eventID, ev)
	if err != nil {
		respondError(c, h.logger, err, "Failed to process webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "result": result})
}
