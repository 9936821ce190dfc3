package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drmixer/elevated-importer/internal/domain"
	"github.com/drmixer/elevated-importer/internal/logger"
	"github.com/drmixer/elevated-importer/internal/providers"
)

const maxListLimit = 200

// createRunRequest is the enqueue payload.
type createRunRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	InputPath  string `json:"input_path"  binding:"required"`
	Limit      int    `json:"limit"`
}

// createRun enqueues a pending import run.
// POST /api/v1/runs
func (r *Router) createRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider_id and input_path are required"})
		return
	}

	// Reject providers the queue could never execute; the distinct messages
	// separate curated-only providers from unknown ids.
	if _, err := providers.ForProvider(req.ProviderID); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if req.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
		return
	}

	run, err := r.runs.CreateRun(c.Request.Context(), domain.RunInput{
		ProviderID: req.ProviderID,
		InputPath:  req.InputPath,
		Limit:      req.Limit,
	})
	if err != nil {
		r.logger.Error("failed to create run", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create run"})
		return
	}

	c.JSON(http.StatusCreated, run)
}

// getRun fetches one run with its totals, errors and log trail.
// GET /api/v1/runs/:id
func (r *Router) getRun(c *gin.Context) {
	run, err := r.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		r.logger.Error("failed to get run", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// listRuns returns runs newest-first.
// GET /api/v1/runs?status=pending&limit=20
func (r *Router) listRuns(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status. Valid values: pending, running, success, error"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	runs, err := r.runs.ListRuns(c.Request.Context(), status, limit)
	if err != nil {
		r.logger.Error("failed to list runs", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

func validStatus(status string) bool {
	switch domain.RunStatus(status) {
	case domain.RunStatusPending, domain.RunStatusRunning, domain.RunStatusSuccess, domain.RunStatusError:
		return true
	default:
		return false
	}
}
