package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/baticonnect/artisan-backend/internal/usecase/sweep"
)

// SweepHandler lets staff trigger the deadline sweep outside its schedule.
type SweepHandler struct {
	runSweep *sweep.RunSweepUseCase
}

func NewSweepHandler(runSweep *sweep.RunSweepUseCase) *SweepHandler {
	return &SweepHandler{runSweep: runSweep}
}

// Run handles POST /admin/sweep.
func (h *SweepHandler) Run(c *gin.Context) {
	report, err := h.runSweep.Execute(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"report": report})
}
