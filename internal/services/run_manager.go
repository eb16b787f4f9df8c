package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

// RunManagerService manages a plan's embedded run history after the
// pipeline finalizes runs: promoting a run to current/published, applying
// human edits, re-validating an edited draft, and deleting the plan.
type RunManagerService interface {
	SetRunStatus(ctx context.Context, tenantID, planID, runID uuid.UUID, status types.RunStatus) (*types.ContentPlan, error)
	UpdateRunContent(ctx context.Context, tenantID, editorID, planID, runID uuid.UUID, title, body, notes string) error
	RerunValidation(ctx context.Context, tenantID, planID, runID uuid.UUID) (*ValidationResult, error)
	DeletePlan(ctx context.Context, tenantID, planID uuid.UUID) error
}

type runManagerService struct {
	db  *gorm.DB
	log *logger.Logger

	planRepo repos.ContentPlanRepo
	itemRepo repos.ContentItemRepo
	validate ValidationService
}

func NewRunManagerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.ContentPlanRepo,
	itemRepo repos.ContentItemRepo,
	validate ValidationService,
) RunManagerService {
	return &runManagerService{
		db:       db,
		log:      baseLog.With("service", "RunManagerService"),
		planRepo: planRepo,
		itemRepo: itemRepo,
		validate: validate,
	}
}

func (s *runManagerService) SetRunStatus(ctx context.Context, tenantID, planID, runID uuid.UUID, status types.RunStatus) (*types.ContentPlan, error) {
	if status != types.RunStatusCurrent && status != types.RunStatusPublished {
		return nil, fmt.Errorf("run status must be %s or %s: %w", types.RunStatusCurrent, types.RunStatusPublished, apierr.ErrInvalidInput)
	}

	return s.planRepo.MutateGenerationMeta(ctx, tenantID, planID, func(plan *types.ContentPlan, meta *types.GenerationMeta) error {
		if plan.Status.Active() {
			return fmt.Errorf("plan %s is processing: %w", planID, apierr.ErrConflict)
		}
		if !meta.Promote(runID, status) {
			return fmt.Errorf("run %s not in plan history: %w", runID, apierr.ErrNotFound)
		}
		run := meta.FindRun(runID)
		itemID := run.ContentItemID
		plan.GeneratedContentItemID = &itemID
		plan.LatestScore = run.Score
		if status == types.RunStatusPublished {
			plan.Status = types.PlanStatusApproved
		}
		return nil
	})
}

func (s *runManagerService) UpdateRunContent(ctx context.Context, tenantID, editorID, planID, runID uuid.UUID, title, body, notes string) error {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(body) == "" {
		return fmt.Errorf("title and body are required: %w", apierr.ErrInvalidInput)
	}

	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return err
	}
	run := plan.GenerationMeta().FindRun(runID)
	if run == nil {
		return fmt.Errorf("run %s not in plan history: %w", runID, apierr.ErrNotFound)
	}

	// Locate the draft before mutating anything.
	item, err := s.itemRepo.GetByID(ctx, nil, tenantID, run.ContentItemID)
	if err != nil {
		return err
	}

	now := time.Now()
	if err := s.itemRepo.UpdateFields(ctx, nil, tenantID, item.ID, map[string]any{
		"title":        title,
		"body":         body,
		"human_edited": true,
		"edited_by":    editorID,
		"edit_notes":   notes,
		"updated_by":   editorID,
		"updated_at":   now,
	}); err != nil {
		return fmt.Errorf("update draft content: %w", err)
	}

	_, err = s.planRepo.MutateGenerationMeta(ctx, tenantID, planID, func(plan *types.ContentPlan, meta *types.GenerationMeta) error {
		r := meta.FindRun(runID)
		if r == nil {
			return fmt.Errorf("run %s not in plan history: %w", runID, apierr.ErrNotFound)
		}
		editor := editorID
		editedAt := now
		r.HumanEdited = true
		r.EditedBy = &editor
		r.EditedAt = &editedAt
		r.EditNotes = notes
		plan.UpdatedBy = editorID
		return nil
	})
	return err
}

func (s *runManagerService) RerunValidation(ctx context.Context, tenantID, planID, runID uuid.UUID) (*ValidationResult, error) {
	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return nil, err
	}
	run := plan.GenerationMeta().FindRun(runID)
	if run == nil {
		return nil, fmt.Errorf("run %s not in plan history: %w", runID, apierr.ErrNotFound)
	}
	item, err := s.itemRepo.GetByID(ctx, nil, tenantID, run.ContentItemID)
	if err != nil {
		return nil, err
	}

	result, err := s.validate.Validate(ctx, plan.Title, &Draft{Title: item.Title, Body: item.Body})
	if err != nil {
		return nil, err
	}
	status := result.Status
	if status != types.IterationStatusError {
		if result.Score >= float64(plan.MinQualityScore) {
			status = types.IterationStatusPass
		} else {
			status = types.IterationStatusFail
		}
	}

	// Manual re-validations are unbounded: the record is appended with the
	// manual flag and the run's iteration count stays untouched.
	_, err = s.planRepo.MutateGenerationMeta(ctx, tenantID, planID, func(plan *types.ContentPlan, meta *types.GenerationMeta) error {
		r := meta.FindRun(runID)
		if r == nil {
			return fmt.Errorf("run %s not in plan history: %w", runID, apierr.ErrNotFound)
		}
		r.Score = result.Score
		r.SubScores = result.SubScores
		r.Issues = result.Issues
		r.Recommendations = result.Recommendations
		r.Strengths = result.Strengths
		r.RefinementHistory = append(r.RefinementHistory, types.IterationRecord{
			Iteration:       len(r.RefinementHistory) + 1,
			Score:           result.Score,
			Status:          status,
			Issues:          result.Issues,
			Recommendations: result.Recommendations,
			Timestamp:       time.Now(),
			Manual:          true,
		})
		plan.LatestScore = result.Score
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *runManagerService) DeletePlan(ctx context.Context, tenantID, planID uuid.UUID) error {
	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return err
	}
	if plan.Status.Active() {
		return fmt.Errorf("plan %s is processing: %w", planID, apierr.ErrConflict)
	}
	meta := plan.GenerationMeta()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range meta.RunHistory {
			run := &meta.RunHistory[i]
			if run.Status == types.RunStatusPublished {
				// Published content outlives the plan; only the linkage goes.
				if err := s.itemRepo.Detach(ctx, tx, tenantID, run.ContentItemID); err != nil {
					return fmt.Errorf("detach published item: %w", err)
				}
				for _, variantID := range run.ChannelVariants {
					if err := s.itemRepo.Detach(ctx, tx, tenantID, variantID); err != nil {
						return fmt.Errorf("detach published variant: %w", err)
					}
				}
				continue
			}
			if err := s.itemRepo.Delete(ctx, tx, tenantID, run.ContentItemID); err != nil {
				return fmt.Errorf("delete run item: %w", err)
			}
			for _, variantID := range run.ChannelVariants {
				if err := s.itemRepo.Delete(ctx, tx, tenantID, variantID); err != nil {
					return fmt.Errorf("delete run variant: %w", err)
				}
			}
		}
		if err := s.planRepo.UpdateFields(ctx, tx, tenantID, planID, map[string]any{
			"status": types.PlanStatusArchived,
		}); err != nil {
			return err
		}
		return s.planRepo.Delete(ctx, tx, tenantID, planID)
	})
}
