package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/sse"
	"github.com/draftforge/draftforge-backend/internal/types"
)

// ExecutionHandle describes an accepted execution request.
type ExecutionHandle struct {
	PlanID     uuid.UUID        `json:"plan_id"`
	Status     types.PlanStatus `json:"status"`
	Mode       string           `json:"mode"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}

// ExecutionService is the single entry point for starting plan processing.
// It enforces the one-active-run-per-plan guarantee by claiming the plan's
// status row before dispatching.
type ExecutionService interface {
	StartProcessing(ctx context.Context, tenantID, actorID, planID uuid.UUID) (*ExecutionHandle, error)
}

type executionService struct {
	log        *logger.Logger
	planRepo   repos.ContentPlanRepo
	dispatcher Dispatcher
	hub        *sse.SSEHub
}

func NewExecutionService(baseLog *logger.Logger, planRepo repos.ContentPlanRepo, dispatcher Dispatcher, hub *sse.SSEHub) ExecutionService {
	return &executionService{
		log:        baseLog.With("service", "ExecutionService"),
		planRepo:   planRepo,
		dispatcher: dispatcher,
		hub:        hub,
	}
}

func (s *executionService) StartProcessing(ctx context.Context, tenantID, actorID, planID uuid.UUID) (*ExecutionHandle, error) {
	log := s.log.With("plan_id", planID, "tenant_id", tenantID)

	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return nil, err
	}
	if plan.Status.Active() {
		return nil, fmt.Errorf("plan %s is already processing (status %s): %w", planID, plan.Status, apierr.ErrConflict)
	}

	first := types.PlanStatusResearching
	if plan.SkipResearch {
		first = types.PlanStatusGenerating
	}

	// The claim is a single conditional UPDATE, so two concurrent triggers
	// cannot both succeed.
	claimed, err := s.planRepo.ClaimForProcessing(ctx, nil, tenantID, planID, types.StartableStatuses(), first)
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, gErr := s.planRepo.GetByID(ctx, nil, tenantID, planID)
		if gErr != nil {
			return nil, gErr
		}
		if current.Status.Active() {
			return nil, fmt.Errorf("plan %s is already processing (status %s): %w", planID, current.Status, apierr.ErrConflict)
		}
		return nil, fmt.Errorf("plan %s cannot start from status %s: %w", planID, current.Status, apierr.ErrInvalidState)
	}

	sink := NewSSEProgressSink(s.hub, tenantID, planID)
	emitProgress(log, sink, StageQueued, "Plan queued for processing", map[string]any{"mode": s.dispatcher.Mode()})

	job := PlanJob{TenantID: tenantID, PlanID: planID}
	if dErr := s.dispatcher.Dispatch(ctx, job); dErr != nil {
		// Release the claim so the plan can be triggered again.
		if uErr := s.planRepo.UpdateFields(ctx, nil, tenantID, planID, map[string]any{
			"status":     plan.Status,
			"updated_by": actorID,
		}); uErr != nil {
			log.Error("Failed to release claim after dispatch failure", "error", uErr)
		}
		return nil, fmt.Errorf("dispatch plan job: %w", dErr)
	}

	log.Info("Plan execution dispatched", "mode", s.dispatcher.Mode(), "first_status", first)
	return &ExecutionHandle{
		PlanID:     planID,
		Status:     first,
		Mode:       s.dispatcher.Mode(),
		EnqueuedAt: time.Now(),
	}, nil
}
