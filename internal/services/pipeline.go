package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

// ContentPipelineService drives one claimed plan through research →
// generation → the bounded refine-and-validate loop → run finalization.
// The caller (execution trigger) owns the claim; Process expects the plan
// to already be in its first active status.
type ContentPipelineService interface {
	Process(ctx context.Context, tenantID, planID uuid.UUID, sink ProgressSink) error
}

type contentPipelineService struct {
	db  *gorm.DB
	log *logger.Logger

	planRepo repos.ContentPlanRepo
	itemRepo repos.ContentItemRepo

	research ResearchService
	generate GenerationService
	validate ValidationService
}

func NewContentPipelineService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.ContentPlanRepo,
	itemRepo repos.ContentItemRepo,
	research ResearchService,
	generate GenerationService,
	validate ValidationService,
) ContentPipelineService {
	return &contentPipelineService{
		db:       db,
		log:      baseLog.With("service", "ContentPipelineService"),
		planRepo: planRepo,
		itemRepo: itemRepo,
		research: research,
		generate: generate,
		validate: validate,
	}
}

func (s *contentPipelineService) Process(ctx context.Context, tenantID, planID uuid.UUID, sink ProgressSink) error {
	log := s.log.With("plan_id", planID, "tenant_id", tenantID)

	plan, err := s.planRepo.GetByID(ctx, nil, tenantID, planID)
	if err != nil {
		return err
	}
	if !plan.Status.Active() {
		return fmt.Errorf("plan %s is not claimed for processing (status %s): %w", planID, plan.Status, apierr.ErrInvalidState)
	}

	fail := func(stage ProgressStage, failErr error) error {
		log.Error("Pipeline failed", "stage", stage, "error", failErr)
		if uErr := s.planRepo.UpdateFields(ctx, nil, tenantID, planID, map[string]any{
			"status":    types.PlanStatusFailed,
			"error_log": failErr.Error(),
		}); uErr != nil {
			log.Error("Failed to record plan failure", "error", uErr)
		}
		emitProgress(log, sink, StageError, failErr.Error(), map[string]any{"failed_stage": string(stage)})
		return failErr
	}

	// Research stage. Skipped plans are claimed straight into generating.
	var research *ResearchResult
	if plan.Status == types.PlanStatusResearching {
		emitProgress(log, sink, StageResearching, "Analyzing competitor content", nil)
		research = s.research.Research(ctx, plan.Title, plan.CompetitorURLList())
		if uErr := s.planRepo.UpdateFields(ctx, nil, tenantID, planID, map[string]any{
			"research_data": types.EncodeJSON(research),
			"status":        types.PlanStatusGenerating,
		}); uErr != nil {
			return fail(StageResearching, fmt.Errorf("persist research: %w", uErr))
		}
		emitProgress(log, sink, StageResearchComplete, "Research complete", map[string]any{"degraded": research.Degraded})
	}

	// Initial draft.
	emitProgress(log, sink, StageGenerating, "Generating initial draft", nil)
	style := plan.Style()
	baseReq := DraftRequest{
		Topic:           plan.Title,
		Description:     plan.Description,
		Audience:        plan.TargetAudience,
		Tone:            plan.Tone,
		Keywords:        plan.SEOKeywordList(),
		Style:           style,
		ResearchSummary: summarizeResearch(research),
	}
	draft, err := s.generate.GenerateDraft(ctx, baseReq)
	if err != nil {
		return fail(StageGenerating, err)
	}
	if uErr := s.planRepo.UpdateFields(ctx, nil, tenantID, planID, map[string]any{
		"status":            types.PlanStatusRefining,
		"current_iteration": 0,
	}); uErr != nil {
		return fail(StageGenerating, fmt.Errorf("enter refining: %w", uErr))
	}

	// Bounded refine-and-validate loop. The best draft seen so far wins,
	// not the last one; ties keep the earliest.
	target := float64(plan.MinQualityScore)
	var (
		history    []types.IterationRecord
		best       *Draft
		bestResult *ValidationResult
		bestScore  = -1.0
		iterations int
	)

	for it := 1; it <= plan.MaxIterations; it++ {
		iterations = it

		result, vErr := s.validate.Validate(ctx, plan.Title, draft)
		if vErr != nil {
			return fail(StageGenerating, vErr)
		}
		status := result.Status
		if status != types.IterationStatusError {
			if result.Score >= target {
				status = types.IterationStatusPass
			} else {
				status = types.IterationStatusFail
			}
		}
		history = append(history, types.IterationRecord{
			Iteration:       it,
			Score:           result.Score,
			Status:          status,
			Issues:          result.Issues,
			Recommendations: result.Recommendations,
			Timestamp:       time.Now(),
		})
		if result.Score > bestScore {
			best = draft
			bestResult = result
			bestScore = result.Score
		}

		if uErr := s.planRepo.UpdateFields(ctx, nil, tenantID, planID, map[string]any{
			"current_iteration": it,
			"latest_score":      result.Score,
		}); uErr != nil {
			return fail(StageGenerating, fmt.Errorf("record iteration %d: %w", it, uErr))
		}
		log.Debug("Iteration validated", "iteration", it, "score", result.Score, "status", status)

		if result.Score >= target || it == plan.MaxIterations {
			break
		}

		draft, err = s.generate.GenerateDraft(ctx, withFeedback(baseReq, draft, buildFeedback(result, target)))
		if err != nil {
			return fail(StageGenerating, err)
		}
	}

	// Finalize the run with the best draft.
	now := time.Now()
	runID := uuid.New()
	item := &types.ContentItem{
		ID:        uuid.New(),
		TenantID:  tenantID,
		PlanID:    &planID,
		RunID:     &runID,
		Title:     best.Title,
		Body:      best.Body,
		CreatedBy: plan.CreatedBy,
		UpdatedBy: plan.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, cErr := s.itemRepo.Create(ctx, nil, []*types.ContentItem{item}); cErr != nil {
		return fail(StageGenerating, fmt.Errorf("persist best draft: %w", cErr))
	}

	run := types.Run{
		RunID:             runID,
		ContentItemID:     item.ID,
		Score:             bestScore,
		Iterations:        iterations,
		Parameters:        style,
		RefinementHistory: history,
		SubScores:         bestResult.SubScores,
		Issues:            bestResult.Issues,
		Recommendations:   bestResult.Recommendations,
		Strengths:         bestResult.Strengths,
		CreatedAt:         now,
	}
	if _, mErr := s.planRepo.MutateGenerationMeta(ctx, tenantID, planID, func(p *types.ContentPlan, meta *types.GenerationMeta) error {
		meta.AppendRun(run)
		p.Status = types.PlanStatusDraftReady
		p.GeneratedContentItemID = &item.ID
		return nil
	}); mErr != nil {
		return fail(StageGenerating, fmt.Errorf("finalize run: %w", mErr))
	}

	emitProgress(log, sink, StageCompleted, "Draft ready", map[string]any{
		"run_id":     runID,
		"score":      bestScore,
		"iterations": iterations,
	})

	// Channel variants are a best-effort side step: per-channel failures are
	// logged and skipped, and never affect the finalized run.
	s.generateChannelVariants(ctx, log, plan, runID, best, baseReq)

	return nil
}

type VariantResult struct {
	Channel       string
	ContentItemID uuid.UUID
	Err           error
}

func (s *contentPipelineService) generateChannelVariants(ctx context.Context, log *logger.Logger, plan *types.ContentPlan, runID uuid.UUID, best *Draft, baseReq DraftRequest) []VariantResult {
	channels := plan.TargetChannelList()
	if len(channels) == 0 {
		return nil
	}

	results := make([]VariantResult, len(channels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, channel := range channels {
		i, channel := i, channel
		g.Go(func() error {
			req := baseReq
			req.Channel = channel
			req.PriorDraft = best
			req.Feedback = ""

			variant, err := s.generate.GenerateDraft(gctx, req)
			if err != nil {
				results[i] = VariantResult{Channel: channel, Err: err}
				return nil
			}
			now := time.Now()
			planID := plan.ID
			rID := runID
			item := &types.ContentItem{
				ID:        uuid.New(),
				TenantID:  plan.TenantID,
				PlanID:    &planID,
				RunID:     &rID,
				Title:     variant.Title,
				Body:      variant.Body,
				Channel:   channel,
				IsVariant: true,
				CreatedBy: plan.CreatedBy,
				UpdatedBy: plan.CreatedBy,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, cErr := s.itemRepo.Create(gctx, nil, []*types.ContentItem{item}); cErr != nil {
				results[i] = VariantResult{Channel: channel, Err: cErr}
				return nil
			}
			results[i] = VariantResult{Channel: channel, ContentItemID: item.ID}
			return nil
		})
	}
	_ = g.Wait()

	variants := map[string]uuid.UUID{}
	for _, r := range results {
		if r.Err != nil {
			log.Warn("Channel variant skipped", "channel", r.Channel, "error", r.Err)
			continue
		}
		variants[r.Channel] = r.ContentItemID
	}
	if len(variants) > 0 {
		if _, err := s.planRepo.MutateGenerationMeta(ctx, plan.TenantID, plan.ID, func(p *types.ContentPlan, meta *types.GenerationMeta) error {
			if run := meta.FindRun(runID); run != nil {
				run.ChannelVariants = variants
			}
			return nil
		}); err != nil {
			log.Warn("Failed to record channel variants", "error", err)
		}
	}
	return results
}

func summarizeResearch(res *ResearchResult) string {
	if res == nil {
		return ""
	}
	var sb strings.Builder
	for _, cs := range res.CompetitorSummaries {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", cs.Title, cs.URL, cs.Summary))
	}
	if res.GapAnalysis != "" {
		sb.WriteString("Gap analysis: ")
		sb.WriteString(res.GapAnalysis)
	}
	return strings.TrimSpace(sb.String())
}

func buildFeedback(result *ValidationResult, target float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Previous draft scored %.0f/100 (target %.0f).\n", result.Score, target))
	if len(result.Issues) > 0 {
		sb.WriteString("Issues:\n")
		for _, issue := range result.Issues {
			sb.WriteString("- " + issue + "\n")
		}
	}
	if len(result.Recommendations) > 0 {
		sb.WriteString("Recommendations:\n")
		for _, rec := range result.Recommendations {
			sb.WriteString("- " + rec + "\n")
		}
	}
	return sb.String()
}

func withFeedback(base DraftRequest, prior *Draft, feedback string) DraftRequest {
	req := base
	req.PriorDraft = prior
	req.Feedback = feedback
	return req
}
