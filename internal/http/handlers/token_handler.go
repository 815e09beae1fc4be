package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/usecase/token"
)

// TokenHandler is the HTTP surface for material tokens: issuance by the
// client, redemption at a supplier's counter.
type TokenHandler struct {
	issue     *token.IssueTokenUseCase
	redeem    *token.RedeemTokenUseCase
	tokenRepo repository.TokenRepository
	currency  string
}

func NewTokenHandler(
	issue *token.IssueTokenUseCase,
	redeem *token.RedeemTokenUseCase,
	tokenRepo repository.TokenRepository,
	currency string,
) *TokenHandler {
	return &TokenHandler{issue: issue, redeem: redeem, tokenRepo: tokenRepo, currency: currency}
}

type geoPointRequest struct {
	Latitude       float64 `json:"latitude" binding:"required"`
	Longitude      float64 `json:"longitude" binding:"required"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

func (g geoPointRequest) toValueObject() (valueobject.GeoPoint, error) {
	return valueobject.NewGeoPoint(g.Latitude, g.Longitude, g.AccuracyMeters)
}

// Issue handles POST /escrows/:id/tokens.
func (h *TokenHandler) Issue(c *gin.Context) {
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

	var req struct {
		AmountMinor      int64       `json:"amount_minor" binding:"required"`
		AllowedRedeemers []uuid.UUID `json:"allowed_redeemers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok, err := h.issue.Execute(c.Request.Context(), token.IssueTokenInput{
		EscrowID:         escrowID,
		RequesterID:      userID,
		Amount:           valueobject.Money{Amount: req.AmountMinor, Currency: h.currency},
		AllowedRedeemers: req.AllowedRedeemers,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": tok})
}

// Redeem handles POST /tokens/redeem. The caller is the supplier; both
// parties' live positions are required for the proximity check.
func (h *TokenHandler) Redeem(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var req struct {
		Code              string          `json:"code" binding:"required"`
		AmountMinor       int64           `json:"amount_minor" binding:"required"`
		RequesterLocation geoPointRequest `json:"requester_location" binding:"required"`
		RedeemerLocation  geoPointRequest `json:"redeemer_location" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requesterLoc, err := req.RequesterLocation.toValueObject()
	if err != nil {
		_ = c.Error(err)
		return
	}
	redeemerLoc, err := req.RedeemerLocation.toValueObject()
	if err != nil {
		_ = c.Error(err)
		return
	}

	tx, err := h.redeem.Execute(c.Request.Context(), token.RedeemTokenInput{
		Code:              req.Code,
		RedeemerID:        userID,
		Amount:            valueobject.Money{Amount: req.AmountMinor, Currency: h.currency},
		RequesterLocation: requesterLoc,
		RedeemerLocation:  redeemerLoc,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ListByEscrow handles GET /escrows/:id/tokens.
func (h *TokenHandler) ListByEscrow(c *gin.Context) {
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.tokenRepo.ListByEscrow(c.Request.Context(), escrowID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}
