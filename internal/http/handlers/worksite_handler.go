package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/domain/entity"
	"github.com/baticonnect/artisan-backend/internal/domain/repository"
	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
	"github.com/baticonnect/artisan-backend/internal/usecase/worksite"
	"github.com/baticonnect/artisan-backend/internal/validation"
)

// WorksiteHandler is the HTTP surface for worksites and their milestones.
type WorksiteHandler struct {
	worksiteRepo repository.WorksiteRepository
	addMilestone *worksite.AddMilestoneUseCase
	submitProof  *worksite.SubmitProofUseCase
	validate     *worksite.ValidateMilestoneUseCase
	contest      *worksite.ContestMilestoneUseCase
	complete     *worksite.CompleteWorksiteUseCase
	currency     string
}

func NewWorksiteHandler(
	worksiteRepo repository.WorksiteRepository,
	addMilestone *worksite.AddMilestoneUseCase,
	submitProof *worksite.SubmitProofUseCase,
	validate *worksite.ValidateMilestoneUseCase,
	contest *worksite.ContestMilestoneUseCase,
	complete *worksite.CompleteWorksiteUseCase,
	currency string,
) *WorksiteHandler {
	return &WorksiteHandler{
		worksiteRepo: worksiteRepo,
		addMilestone: addMilestone,
		submitProof:  submitProof,
		validate:     validate,
		contest:      contest,
		complete:     complete,
		currency:     currency,
	}
}

// GetByJob handles GET /jobs/:id/worksite.
func (h *WorksiteHandler) GetByJob(c *gin.Context) {
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

	w, err := h.worksiteRepo.GetByJobID(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	role, _ := common.CurrentUserRole(c)
	if userID != w.PayerID && userID != w.PayeeID && !isStaff(role) {
		_ = c.Error(apperror.ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"worksite": w,
		"progress": w.ProgressPercentage(),
	})
}

// AddMilestone handles POST /worksites/:id/milestones.
func (h *WorksiteHandler) AddMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	worksiteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Description    string `json:"description" binding:"required"`
		LaborMinor     int64  `json:"labor_minor" binding:"required"`
		SequenceNumber int    `json:"sequence_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateMilestoneDescription(req.Description); err != nil {
		_ = c.Error(err)
		return
	}

	m, err := h.addMilestone.Execute(c.Request.Context(), worksite.AddMilestoneInput{
		WorksiteID:     worksiteID,
		ActorID:        userID,
		Description:    req.Description,
		LaborAmount:    valueobject.Money{Amount: req.LaborMinor, Currency: h.currency},
		SequenceNumber: req.SequenceNumber,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"milestone": m})
}

// SubmitProof handles POST /worksites/:id/milestones/:milestoneId/proof.
func (h *WorksiteHandler) SubmitProof(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	worksiteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		PhotoURL   string          `json:"photo_url" binding:"required"`
		Location   geoPointRequest `json:"location" binding:"required"`
		CapturedAt time.Time       `json:"captured_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	location, err := req.Location.toValueObject()
	if err != nil {
		_ = c.Error(err)
		return
	}

	m, err := h.submitProof.Execute(c.Request.Context(), worksite.SubmitProofInput{
		WorksiteID:  worksiteID,
		MilestoneID: milestoneID,
		ActorID:     userID,
		Proof: entity.ProofOfDelivery{
			PhotoURL:   req.PhotoURL,
			Location:   location,
			CapturedAt: req.CapturedAt,
		},
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"milestone": m})
}

// ValidateMilestone handles POST /worksites/:id/milestones/:milestoneId/validate.
func (h *WorksiteHandler) ValidateMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	worksiteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.validate.Execute(c.Request.Context(), worksite.ValidateMilestoneInput{
		WorksiteID:  worksiteID,
		MilestoneID: milestoneID,
		ActorID:     &userID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ContestMilestone handles POST /worksites/:id/milestones/:milestoneId/contest.
func (h *WorksiteHandler) ContestMilestone(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	worksiteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	milestoneID, err := common.ParseUUIDParam(c, "milestoneId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.contest.Execute(c.Request.Context(), worksite.ContestMilestoneInput{
		WorksiteID:  worksiteID,
		MilestoneID: milestoneID,
		ActorID:     userID,
		Reason:      req.Reason,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "milestone contested"})
}

// Complete handles POST /worksites/:id/complete.
func (h *WorksiteHandler) Complete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	worksiteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.complete.Execute(c.Request.Context(), worksite.CompleteWorksiteInput{
		WorksiteID: worksiteID,
		ActorID:    userID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": event})
}
