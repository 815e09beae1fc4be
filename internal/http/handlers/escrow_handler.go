package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/service"
	"github.com/baticonnect/artisan-backend/internal/usecase/escrow"
)

// EscrowHandler exposes read access to escrow accounts and the admin
// refund operation. Releases happen through milestone validation and token
// redemption, never directly.
type EscrowHandler struct {
	escrowRepo repository.EscrowRepository
	txRepo     repository.TransactionRepository
	refund     *escrow.RefundEscrowUseCase
	currency   string
}

func NewEscrowHandler(
	escrowRepo repository.EscrowRepository,
	txRepo repository.TransactionRepository,
	refund *escrow.RefundEscrowUseCase,
	currency string,
) *EscrowHandler {
	return &EscrowHandler{escrowRepo: escrowRepo, txRepo: txRepo, refund: refund, currency: currency}
}

// GetByJob handles GET /jobs/:id/escrow.
func (h *EscrowHandler) GetByJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.escrowRepo.GetByJobID(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if userID != account.PayerID && userID != account.PayeeID && !isStaff(role) {
		_ = c.Error(apperror.ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escrow": account})
}

// ListTransactions handles GET /escrows/:id/transactions.
func (h *EscrowHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.escrowRepo.GetByID(c.Request.Context(), escrowID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if userID != account.PayerID && userID != account.PayeeID && !isStaff(role) {
		_ = c.Error(apperror.ErrForbidden)
		return
	}

	transactions, err := h.txRepo.ListByEscrow(c.Request.Context(), escrowID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// Refund handles POST /escrows/:id/refund. Staff only; used when a job
// falls through before any work starts.
func (h *EscrowHandler) Refund(c *gin.Context) {
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		AmountMinor int64 `json:"amount_minor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.refund.Execute(c.Request.Context(), escrow.RefundInput{
		EscrowID:  escrowID,
		Amount:    valueobject.Money{Amount: req.AmountMinor, Currency: h.currency},
		Reference: service.ManualReference(escrowID, "refund"),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
