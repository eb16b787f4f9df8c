package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/config"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

type PlanInput struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	TargetChannels  []string               `json:"target_channels"`
	TargetAudience  string                 `json:"target_audience"`
	Tone            string                 `json:"tone"`
	SEOKeywords     []string               `json:"seo_keywords"`
	CompetitorURLs  []string               `json:"competitor_urls"`
	MinQualityScore int                    `json:"min_quality_score"`
	MaxIterations   int                    `json:"max_iterations"`
	SkipResearch    bool                   `json:"skip_research"`
	Style           types.GenerationParams `json:"style"`
}

// PlanStatusSnapshot is the read model returned by GetStatus.
type PlanStatusSnapshot struct {
	PlanID                 uuid.UUID        `json:"plan_id"`
	Status                 types.PlanStatus `json:"status"`
	CurrentIteration       int              `json:"current_iteration"`
	LatestScore            float64          `json:"latest_score"`
	RetryCount             int              `json:"retry_count"`
	ErrorLog               string           `json:"error_log,omitempty"`
	RunCount               int              `json:"run_count"`
	CurrentRunID           *uuid.UUID       `json:"current_run_id,omitempty"`
	PublishedRunID         *uuid.UUID       `json:"published_run_id,omitempty"`
	GeneratedContentItemID *uuid.UUID       `json:"generated_content_item_id,omitempty"`
}

type ContentPlanService interface {
	CreatePlan(ctx context.Context, tenantID, actorID uuid.UUID, input PlanInput) (*types.ContentPlan, error)
	GetPlan(ctx context.Context, tenantID, planID uuid.UUID) (*types.ContentPlan, error)
	ListPlans(ctx context.Context, tenantID uuid.UUID) ([]*types.ContentPlan, error)
	UpdatePlan(ctx context.Context, tenantID, actorID, planID uuid.UUID, input PlanInput) (*types.ContentPlan, error)
	GetStatus(ctx context.Context, tenantID, planID uuid.UUID) (*PlanStatusSnapshot, error)
	Retry(ctx context.Context, tenantID, planID uuid.UUID) (*types.ContentPlan, error)
}

type contentPlanService struct {
	db       *gorm.DB
	log      *logger.Logger
	planRepo repos.ContentPlanRepo
	defaults config.PipelineConfig
}

func NewContentPlanService(db *gorm.DB, baseLog *logger.Logger, planRepo repos.ContentPlanRepo, defaults config.PipelineConfig) ContentPlanService {
	return &contentPlanService{
		db:       db,
		log:      baseLog.With("service", "ContentPlanService"),
		planRepo: planRepo,
		defaults: defaults,
	}
}

// validateInput rejects bad parameters before any state change. Zero values
// for the bounded knobs mean "use the configured default".
func (s *contentPlanService) validateInput(input *PlanInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("title is required: %w", apierr.ErrInvalidInput)
	}
	if input.MinQualityScore == 0 {
		input.MinQualityScore = s.defaults.DefaultMinQualityScore
	}
	if input.MinQualityScore < types.MinQualityScoreFloor || input.MinQualityScore > types.MinQualityScoreCeiling {
		return fmt.Errorf("min_quality_score must be between %d and %d: %w",
			types.MinQualityScoreFloor, types.MinQualityScoreCeiling, apierr.ErrInvalidInput)
	}
	if input.MaxIterations == 0 {
		input.MaxIterations = s.defaults.DefaultMaxIterations
	}
	if input.MaxIterations < types.MaxIterationsFloor || input.MaxIterations > types.MaxIterationsCeiling {
		return fmt.Errorf("max_iterations must be between %d and %d: %w",
			types.MaxIterationsFloor, types.MaxIterationsCeiling, apierr.ErrInvalidInput)
	}
	input.Style = input.Style.Clamp()
	return nil
}

func (s *contentPlanService) CreatePlan(ctx context.Context, tenantID, actorID uuid.UUID, input PlanInput) (*types.ContentPlan, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	now := time.Now()
	plan := &types.ContentPlan{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Title:           strings.TrimSpace(input.Title),
		Description:     input.Description,
		TargetChannels:  types.EncodeStringList(input.TargetChannels),
		TargetAudience:  input.TargetAudience,
		Tone:            input.Tone,
		SEOKeywords:     types.EncodeStringList(input.SEOKeywords),
		CompetitorURLs:  types.EncodeStringList(input.CompetitorURLs),
		MinQualityScore: input.MinQualityScore,
		MaxIterations:   input.MaxIterations,
		SkipResearch:    input.SkipResearch,
		StyleParams:     types.EncodeJSON(input.Style),
		Status:          types.PlanStatusPlanned,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := s.planRepo.Create(ctx, nil, []*types.ContentPlan{plan}); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

func (s *contentPlanService) GetPlan(ctx context.Context, tenantID, planID uuid.UUID) (*types.ContentPlan, error) {
	return s.planRepo.GetByID(ctx, nil, tenantID, planID)
}

func (s *contentPlanService) ListPlans(ctx context.Context, tenantID uuid.UUID) ([]*types.ContentPlan, error) {
	return s.planRepo.ListByTenant(ctx, nil, tenantID)
}

func (s *contentPlanService) UpdatePlan(ctx context.Context, tenantID, actorID, planID uuid.UUID, input PlanInput) (*types.ContentPlan, error) {
	if err := s.validateInput(&input); err != nil {
		return nil, err
	}

	// Input parameters are immutable while the plan is processing.
	res := s.db.WithContext(ctx).
		Model(&types.ContentPlan{}).
		Where("id = ? AND tenant_id = ? AND status NOT IN ?", planID, tenantID, []types.PlanStatus{
			types.PlanStatusResearching, types.PlanStatusGenerating, types.PlanStatusRefining,
		}).
		Updates(map[string]any{
			"title":             strings.TrimSpace(input.Title),
			"description":       input.Description,
			"target_channels":   types.EncodeStringList(input.TargetChannels),
			"target_audience":   input.TargetAudience,
			"tone":              input.Tone,
			"seo_keywords":      types.EncodeStringList(input.SEOKeywords),
			"competitor_urls":   types.EncodeStringList(input.CompetitorURLs),
			"min_quality_score": input.MinQualityScore,
			"max_iterations":    input.MaxIterations,
			"skip_research":     input.SkipResearch,
			"style_params":      types.EncodeJSON(input.Style),
			"updated_by":        actorID,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("plan %s is processing (status %s): %w", planID, plan.Status, apierr.ErrConflict)
	}
	return s.planRepo.GetByID(ctx, nil, tenantID, planID)
}

func (s *contentPlanService) GetStatus(ctx context.Context, tenantID, planID uuid.UUID) (*PlanStatusSnapshot, error) {
	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return nil, err
	}
	meta := plan.GenerationMeta()
	return &PlanStatusSnapshot{
		PlanID:                 plan.ID,
		Status:                 plan.Status,
		CurrentIteration:       plan.CurrentIteration,
		LatestScore:            plan.LatestScore,
		RetryCount:             plan.RetryCount,
		ErrorLog:               plan.ErrorLog,
		RunCount:               len(meta.RunHistory),
		CurrentRunID:           meta.CurrentRunID,
		PublishedRunID:         meta.PublishedRunID,
		GeneratedContentItemID: plan.GeneratedContentItemID,
	}, nil
}

func (s *contentPlanService) Retry(ctx context.Context, tenantID, planID uuid.UUID) (*types.ContentPlan, error) {
	ok, err := s.planRepo.MarkRetry(ctx, nil, tenantID, planID)
	if err != nil {
		return nil, err
	}
	if !ok {
		plan, gErr := s.planRepo.GetByID(ctx, nil, tenantID, planID)
		if gErr != nil {
			return nil, gErr
		}
		return nil, fmt.Errorf("retry requires status %s, plan is %s: %w",
			types.PlanStatusFailed, plan.Status, apierr.ErrInvalidState)
	}
	return s.planRepo.GetByID(ctx, nil, tenantID, planID)
}
