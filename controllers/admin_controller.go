package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/fabmarket-api/middleware"
	"github.com/kendall-kelly/fabmarket-api/models"
)

// requireStaff resolves the caller and rejects accounts that are neither staff
// nor holding the admin scope
func requireStaff(c *gin.Context) (*models.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	if !user.IsStaff && !middleware.TokenHasScope(c, middleware.AdminScope) {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "Staff access required")
		return nil, false
	}
	return user, true
}

// ListFailedAnalysisJobs handles GET /api/v1/admin/analysis-jobs/failed
func ListFailedAnalysisJobs(c *gin.Context) {
	if _, ok := requireStaff(c); !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	failed, err := analysisQueue().ListFailed(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "Failed to list analysis jobs")
		return
	}
	respondSuccess(c, http.StatusOK, failed)
}

// ReplayAnalysisJob handles POST /api/v1/admin/analysis-jobs/:id/replay
func ReplayAnalysisJob(c *gin.Context) {
	staff, ok := requireStaff(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	job, err := analysisQueue().Replay(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "Failed to replay analysis job")
		return
	}

	requestLog(c).Info("Analysis job replayed", "job_id", job.ID, "design_id", job.DesignID, "staff_id", staff.ID)
	respondSuccess(c, http.StatusOK, job)
}
