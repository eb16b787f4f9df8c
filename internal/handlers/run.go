package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/services"
	"github.com/draftforge/draftforge-backend/internal/types"
)

// RunHandler exposes operations on a plan's run history: promoting a run to
// current or published, editing its draft, and re-validating after edits.
type RunHandler struct {
	log        *logger.Logger
	runManager services.RunManagerService
}

func NewRunHandler(baseLog *logger.Logger, runManager services.RunManagerService) *RunHandler {
	return &RunHandler{
		log:        baseLog.With("handler", "RunHandler"),
		runManager: runManager,
	}
}

func runIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("runID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_RUN_ID", errors.New("runID must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

type setRunStatusRequest struct {
	Status types.RunStatus `json:"status"`
}

func (h *RunHandler) SetRunStatus(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	var req setRunStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	plan, err := h.runManager.SetRunStatus(c.Request.Context(), rd.TenantID, planID, runID, req.Status)
	if err != nil {
		RespondServiceError(c, "SET_RUN_STATUS_FAILED", err)
		return
	}
	RespondOK(c, plan)
}

type updateRunContentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Notes string `json:"notes"`
}

func (h *RunHandler) UpdateRunContent(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	var req updateRunContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	if err := h.runManager.UpdateRunContent(c.Request.Context(), rd.TenantID, rd.UserID, planID, runID, req.Title, req.Body, req.Notes); err != nil {
		RespondServiceError(c, "UPDATE_RUN_CONTENT_FAILED", err)
		return
	}
	RespondOK(c, gin.H{"run_id": runID, "updated": true})
}

func (h *RunHandler) RerunValidation(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	runID, ok := runIDParam(c)
	if !ok {
		return
	}
	result, err := h.runManager.RerunValidation(c.Request.Context(), rd.TenantID, planID, runID)
	if err != nil {
		RespondServiceError(c, "RERUN_VALIDATION_FAILED", err)
		return
	}
	RespondOK(c, result)
}
