package delivery

import (
	"errors"
	"io"
	"net/http"

	"thinkwrapper-backend/internal/billing/usecase"

	"github.com/gin-gonic/gin"
)

// WebhookHandler handles billing provider webhook deliveries
type WebhookHandler struct {
	ingress *usecase.Ingress
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingress *usecase.Ingress) *WebhookHandler {
	return &WebhookHandler{
		ingress: ingress,
	}
}

// HandlePaddle ingests one Paddle webhook delivery. The provider retries on
// non-2xx, so storage faults return 500 while bad requests do not.
// POST /api/webhooks/paddle
func (h *WebhookHandler) HandlePaddle(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	signature := c.GetHeader("Paddle-Signature")

	outcome, err := h.ingress.Ingest(rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrBadSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, usecase.ErrMalformed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "event could not be stored"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}
