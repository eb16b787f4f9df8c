package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/requestdata"
	"github.com/draftforge/draftforge-backend/internal/services"
)

// ContentPlanHandler exposes the plan lifecycle: CRUD, status polling, the
// execution trigger, and retry of failed plans.
type ContentPlanHandler struct {
	log        *logger.Logger
	planSvc    services.ContentPlanService
	runManager services.RunManagerService
	execution  services.ExecutionService
}

func NewContentPlanHandler(
	baseLog *logger.Logger,
	planSvc services.ContentPlanService,
	runManager services.RunManagerService,
	execution services.ExecutionService,
) *ContentPlanHandler {
	return &ContentPlanHandler{
		log:        baseLog.With("handler", "ContentPlanHandler"),
		planSvc:    planSvc,
		runManager: runManager,
		execution:  execution,
	}
}

func identity(c *gin.Context) (*requestdata.RequestData, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.TenantID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errors.New("missing tenant context"))
		return nil, false
	}
	return rd, true
}

func planIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("planID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_PLAN_ID", errors.New("planID must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ContentPlanHandler) CreatePlan(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	var input services.PlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	plan, err := h.planSvc.CreatePlan(c.Request.Context(), rd.TenantID, rd.UserID, input)
	if err != nil {
		RespondServiceError(c, "CREATE_PLAN_FAILED", err)
		return
	}
	RespondCreated(c, plan)
}

func (h *ContentPlanHandler) ListPlans(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	plans, err := h.planSvc.ListPlans(c.Request.Context(), rd.TenantID)
	if err != nil {
		RespondServiceError(c, "LIST_PLANS_FAILED", err)
		return
	}
	RespondOK(c, gin.H{"plans": plans})
}

func (h *ContentPlanHandler) GetPlan(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.GetPlan(c.Request.Context(), rd.TenantID, planID)
	if err != nil {
		RespondServiceError(c, "GET_PLAN_FAILED", err)
		return
	}
	RespondOK(c, plan)
}

func (h *ContentPlanHandler) UpdatePlan(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	var input services.PlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_BODY", err)
		return
	}
	plan, err := h.planSvc.UpdatePlan(c.Request.Context(), rd.TenantID, rd.UserID, planID, input)
	if err != nil {
		RespondServiceError(c, "UPDATE_PLAN_FAILED", err)
		return
	}
	RespondOK(c, plan)
}

func (h *ContentPlanHandler) DeletePlan(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	if err := h.runManager.DeletePlan(c.Request.Context(), rd.TenantID, planID); err != nil {
		RespondServiceError(c, "DELETE_PLAN_FAILED", err)
		return
	}
	RespondOK(c, gin.H{"deleted": planID})
}

func (h *ContentPlanHandler) GetStatus(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	snapshot, err := h.planSvc.GetStatus(c.Request.Context(), rd.TenantID, planID)
	if err != nil {
		RespondServiceError(c, "GET_STATUS_FAILED", err)
		return
	}
	RespondOK(c, snapshot)
}

func (h *ContentPlanHandler) Execute(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	handle, err := h.execution.StartProcessing(c.Request.Context(), rd.TenantID, rd.UserID, planID)
	if err != nil {
		RespondServiceError(c, "EXECUTE_PLAN_FAILED", err)
		return
	}
	RespondAccepted(c, handle)
}

func (h *ContentPlanHandler) Retry(c *gin.Context) {
	rd, ok := identity(c)
	if !ok {
		return
	}
	planID, ok := planIDParam(c)
	if !ok {
		return
	}
	plan, err := h.planSvc.Retry(c.Request.Context(), rd.TenantID, planID)
	if err != nil {
		RespondServiceError(c, "RETRY_PLAN_FAILED", err)
		return
	}
	RespondOK(c, plan)
}
