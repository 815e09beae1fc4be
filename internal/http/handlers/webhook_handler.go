package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/models"
)

// WebhookHandler receives asynchronous status callbacks from the mobile
// money provider and reconciles pending movements.
type WebhookHandler struct {
	txRepo repository.TransactionRepository
	apiKey string
}

func NewWebhookHandler(txRepo repository.TransactionRepository, apiKey string) *WebhookHandler {
	return &WebhookHandler{txRepo: txRepo, apiKey: apiKey}
}

var webhookStatuses = map[string]string{
	"completed": models.TransactionStatusCompleted,
	"failed":    models.TransactionStatusFailed,
	"cancelled": models.TransactionStatusCancelled,
}

// HandleGatewayCallback handles POST /webhooks/gateway. The movement is
// addressed by the reference we handed the provider, never by amount.
func (h *WebhookHandler) HandleGatewayCallback(c *gin.Context) {
	if h.apiKey != "" {
		key := c.GetHeader("X-Gateway-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.apiKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid gateway key"})
			return
		}
	}

	var req struct {
		Reference    string  `json:"reference" binding:"required"`
		Status       string  `json:"status" binding:"required"`
		ProviderTxID *string `json:"provider_tx_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status, ok := webhookStatuses[req.Status]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + req.Status})
		return
	}

	tx, err := h.txRepo.GetByReference(c.Request.Context(), req.Reference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	// A movement already reconciled is acknowledged without change, so the
	// provider can safely re-deliver.
	if tx.Status != models.TransactionStatusPending {
		c.JSON(http.StatusOK, gin.H{"message": "already reconciled"})
		return
	}

	var completedAt *time.Time
	if status == models.TransactionStatusCompleted {
		now := time.Now().UTC()
		completedAt = &now
	}

	if err := h.txRepo.UpdateStatus(c.Request.Context(), tx.ID, status, req.ProviderTxID, completedAt); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reconciled"})
}
