package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/baticonnect/artisan-backend/internal/domain/valueobject"
	"github.com/baticonnect/artisan-backend/internal/http/handlers/common"
	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/repository"
	"github.com/baticonnect/artisan-backend/internal/usecase/job"
	"github.com/baticonnect/artisan-backend/internal/validation"
)

// JobHandler is the HTTP surface for jobs and quotes. Accepting a quote is
// the financially significant operation; everything else is plain CRUD.
type JobHandler struct {
	jobs        *repository.JobRepository
	acceptQuote *job.AcceptQuoteUseCase
	currency    string
}

func NewJobHandler(jobs *repository.JobRepository, acceptQuote *job.AcceptQuoteUseCase, currency string) *JobHandler {
	return &JobHandler{jobs: jobs, acceptQuote: acceptQuote, currency: currency}
}

// Create handles POST /jobs.
func (h *JobHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateJobTitle(req.Title); err != nil {
		_ = c.Error(err)
		return
	}
	if err := validation.ValidateJobDescription(req.Description); err != nil {
		_ = c.Error(err)
		return
	}

	now := time.Now().UTC()
	j := &models.Job{
		ID:          uuid.New(),
		ClientID:    userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.JobStatusPosted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.jobs.Create(c.Request.Context(), j); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job": j})
}

// Get handles GET /jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	j, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": j})
}

// ListMine handles GET /jobs/my. Clients see their posted jobs, artisans
// the jobs they won.
func (h *JobHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	role, _ := common.CurrentUserRole(c)
	limit, offset := common.GetPagination(c)

	var jobs []*models.Job
	if role == models.RoleArtisan {
		jobs, err = h.jobs.ListByArtisan(c.Request.Context(), userID, limit, offset)
	} else {
		jobs, err = h.jobs.ListByClient(c.Request.Context(), userID, limit, offset)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// ListOpen handles GET /jobs.
func (h *JobHandler) ListOpen(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	jobs, err := h.jobs.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// SubmitQuote handles POST /jobs/:id/quotes.
func (h *JobHandler) SubmitQuote(c *gin.Context) {
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

	var req struct {
		AmountMinor int64   `json:"amount_minor" binding:"required"`
		Message     *string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AmountMinor <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quote amount must be positive"})
		return
	}

	j, err := h.jobs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if j.Status != models.JobStatusPosted && j.Status != models.JobStatusQuoted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is no longer accepting quotes"})
		return
	}

	quote := &models.Quote{
		ID:        uuid.New(),
		JobID:     jobID,
		ArtisanID: userID,
		Amount:    valueobject.Money{Amount: req.AmountMinor, Currency: h.currency},
		Message:   req.Message,
		Status:    models.QuoteStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.jobs.CreateQuote(c.Request.Context(), quote); err != nil {
		_ = c.Error(err)
		return
	}

	if j.Status == models.JobStatusPosted {
		if err := h.jobs.UpdateStatus(c.Request.Context(), jobID, models.JobStatusQuoted); err != nil {
			_ = c.Error(err)
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"quote": quote})
}

// ListQuotes handles GET /jobs/:id/quotes.
func (h *JobHandler) ListQuotes(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quotes, err := h.jobs.ListQuotes(c.Request.Context(), jobID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotes": quotes})
}

// AcceptQuote handles POST /jobs/:id/quotes/:quoteId/accept. This blocks
// the client's funds, opens the escrow account and creates the worksite.
func (h *JobHandler) AcceptQuote(c *gin.Context) {
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
	quoteID, err := common.ParseUUIDParam(c, "quoteId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.acceptQuote.Execute(c.Request.Context(), job.AcceptQuoteInput{
		JobID:    jobID,
		QuoteID:  quoteID,
		ClientID: userID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
