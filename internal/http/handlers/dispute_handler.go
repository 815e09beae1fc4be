package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/usecase/dispute"
	"github.com/baticonnect/artisan-backend/internal/validation"
)

// DisputeHandler is the HTTP surface for the dispute lifecycle, from
// opening through mediation and arbitration to closure.
type DisputeHandler struct {
	disputeRepo      repository.DisputeRepository
	open             *dispute.OpenDisputeUseCase
	startMediation   *dispute.StartMediationUseCase
	addCommunication *dispute.AddCommunicationUseCase
	resolveMediation *dispute.ResolveMediationUseCase
	escalate         *dispute.EscalateDisputeUseCase
	renderDecision   *dispute.RenderDecisionUseCase
	close            *dispute.CloseDisputeUseCase
	currency         string
}

func NewDisputeHandler(
	disputeRepo repository.DisputeRepository,
	open *dispute.OpenDisputeUseCase,
	startMediation *dispute.StartMediationUseCase,
	addCommunication *dispute.AddCommunicationUseCase,
	resolveMediation *dispute.ResolveMediationUseCase,
	escalate *dispute.EscalateDisputeUseCase,
	renderDecision *dispute.RenderDecisionUseCase,
	closeDispute *dispute.CloseDisputeUseCase,
	currency string,
) *DisputeHandler {
	return &DisputeHandler{
		disputeRepo:      disputeRepo,
		open:             open,
		startMediation:   startMediation,
		addCommunication: addCommunication,
		resolveMediation: resolveMediation,
		escalate:         escalate,
		renderDecision:   renderDecision,
		close:            closeDispute,
		currency:         currency,
	}
}

// Open handles POST /disputes.
func (h *DisputeHandler) Open(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var req struct {
		JobID        string   `json:"job_id" binding:"required,uuid"`
		Type         string   `json:"type" binding:"required"`
		Description  string   `json:"description" binding:"required"`
		EvidenceURLs []string `json:"evidence_urls"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateDisputeDescription(req.Description); err != nil {
		_ = c.Error(err)
		return
	}
	if err := validation.ValidateEvidenceURLs(req.EvidenceURLs); err != nil {
		_ = c.Error(err)
		return
	}

	d, err := h.open.Execute(c.Request.Context(), dispute.OpenDisputeInput{
		JobID:        uuid.MustParse(req.JobID),
		ReporterID:   userID,
		Type:         entity.DisputeType(req.Type),
		Description:  req.Description,
		EvidenceURLs: req.EvidenceURLs,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dispute": d})
}

// Get handles GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.disputeRepo.GetByID(c.Request.Context(), disputeID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if !isDisputeParticipant(d, userID) && !isStaff(role) {
		_ = c.Error(apperror.ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// ListMine handles GET /disputes/my.
func (h *DisputeHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	limit, offset := common.GetPagination(c)

	disputes, err := h.disputeRepo.ListByParty(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// StartMediation handles POST /disputes/:id/mediation. Staff only; the
// mediator is assigned automatically based on the escrow total.
func (h *DisputeHandler) StartMediation(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.startMediation.Execute(c.Request.Context(), dispute.StartMediationInput{
		DisputeID: disputeID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// AddCommunication handles POST /disputes/:id/communications.
func (h *DisputeHandler) AddCommunication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateMessageContent(req.Message); err != nil {
		_ = c.Error(err)
		return
	}

	d, err := h.addCommunication.Execute(c.Request.Context(), dispute.AddCommunicationInput{
		DisputeID: disputeID,
		AuthorID:  userID,
		Message:   req.Message,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// ResolveMediation handles POST /disputes/:id/resolve. The assigned
// mediator records the amicable agreement.
func (h *DisputeHandler) ResolveMediation(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Summary string `json:"summary" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.resolveMediation.Execute(c.Request.Context(), dispute.ResolveMediationInput{
		DisputeID: disputeID,
		ActorID:   userID,
		Summary:   req.Summary,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// Escalate handles POST /disputes/:id/escalate.
func (h *DisputeHandler) Escalate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		ArbitratorID string `json:"arbitrator_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.escalate.Execute(c.Request.Context(), dispute.EscalateDisputeInput{
		DisputeID:    disputeID,
		ActorID:      userID,
		ArbitratorID: uuid.MustParse(req.ArbitratorID),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// RenderDecision handles POST /disputes/:id/decision. The assigned
// arbitrator rules and the escrow is settled accordingly.
func (h *DisputeHandler) RenderDecision(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Kind          string `json:"kind" binding:"required"`
		AmountMinor   *int64 `json:"amount_minor"`
		Justification string `json:"justification" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision := entity.Decision{Kind: entity.DecisionKind(req.Kind)}
	if req.AmountMinor != nil {
		decision.Amount = &valueobject.Money{Amount: *req.AmountMinor, Currency: h.currency}
	}

	d, err := h.renderDecision.Execute(c.Request.Context(), dispute.RenderDecisionInput{
		DisputeID:     disputeID,
		ActorID:       userID,
		Decision:      decision,
		Justification: req.Justification,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

// Close handles POST /disputes/:id/close. Staff only.
func (h *DisputeHandler) Close(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.close.Execute(c.Request.Context(), dispute.CloseDisputeInput{
		DisputeID: disputeID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": d})
}

func isDisputeParticipant(d *entity.Dispute, userID uuid.UUID) bool {
	if d.ReporterID == userID || d.DefendantID == userID {
		return true
	}
	if d.Mediation != nil && d.Mediation.MediatorID == userID {
		return true
	}
	if d.Arbitration != nil && d.Arbitration.ArbitratorID == userID {
		return true
	}
	return false
}
