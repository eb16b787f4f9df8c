package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/config"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

func newPlanServiceFixture(t *testing.T) (ContentPlanService, repos.ContentPlanRepo) {
	t.Helper()
	log := newTestLogger(t)
	db := newTestDB(t)
	planRepo := repos.NewContentPlanRepo(db, log)
	defaults := config.PipelineConfig{DefaultMinQualityScore: 85, DefaultMaxIterations: 3}
	return NewContentPlanService(db, log, planRepo, defaults), planRepo
}

func TestCreatePlanAppliesDefaults(t *testing.T) {
	svc, _ := newPlanServiceFixture(t)
	tenantID, actorID := uuid.New(), uuid.New()

	plan, err := svc.CreatePlan(context.Background(), tenantID, actorID, PlanInput{
		Title: "  Quarterly churn report  ",
		Style: types.GenerationParams{Creativity: 8},
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if plan.Title != "Quarterly churn report" {
		t.Fatalf("title: want trimmed, got=%q", plan.Title)
	}
	if plan.Status != types.PlanStatusPlanned {
		t.Fatalf("status: want=%s got=%s", types.PlanStatusPlanned, plan.Status)
	}
	if plan.MinQualityScore != 85 || plan.MaxIterations != 3 {
		t.Fatalf("defaults: want=85/3 got=%d/%d", plan.MinQualityScore, plan.MaxIterations)
	}
	style := plan.Style()
	if style.Creativity != 8 || style.Humor != types.StyleLevelDefault {
		t.Fatalf("style clamp: got=%+v", style)
	}
	if plan.CreatedBy != actorID {
		t.Fatalf("created_by: want=%s got=%s", actorID, plan.CreatedBy)
	}
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	svc, _ := newPlanServiceFixture(t)
	tenantID, actorID := uuid.New(), uuid.New()

	cases := []PlanInput{
		{Title: "   "},
		{Title: "ok", MinQualityScore: 79},
		{Title: "ok", MinQualityScore: 101},
		{Title: "ok", MaxIterations: 6},
	}
	for i, input := range cases {
		if _, err := svc.CreatePlan(context.Background(), tenantID, actorID, input); !errors.Is(err, apierr.ErrInvalidInput) {
			t.Fatalf("case %d: want=%v got=%v", i, apierr.ErrInvalidInput, err)
		}
	}
}

func TestUpdatePlanRejectedWhileActive(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{Status: types.PlanStatusRefining})

	_, err := svc.UpdatePlan(context.Background(), plan.TenantID, uuid.New(), plan.ID, PlanInput{Title: "New title"})
	if !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("active plan update: want=%v got=%v", apierr.ErrConflict, err)
	}

	got, _ := planRepo.GetByID(context.Background(), nil, plan.TenantID, plan.ID)
	if got.Title == "New title" {
		t.Fatalf("active plan must not be updated")
	}
}

func TestUpdatePlanWhenIdle(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})

	updated, err := svc.UpdatePlan(context.Background(), plan.TenantID, uuid.New(), plan.ID, PlanInput{
		Title:       "New title",
		SEOKeywords: []string{"churn", "retention"},
	})
	if err != nil {
		t.Fatalf("UpdatePlan: %v", err)
	}
	if updated.Title != "New title" {
		t.Fatalf("title: want=%q got=%q", "New title", updated.Title)
	}
	if kws := updated.SEOKeywordList(); len(kws) != 2 {
		t.Fatalf("keywords: want=2 got=%v", kws)
	}
}

func TestRetryFailedPlan(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{Status: types.PlanStatusFailed, ErrorLog: "model unavailable"})

	got, err := svc.Retry(context.Background(), plan.TenantID, plan.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if got.Status != types.PlanStatusPlanned {
		t.Fatalf("status: want=%s got=%s", types.PlanStatusPlanned, got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count: want=1 got=%d", got.RetryCount)
	}
	if got.ErrorLog != "" {
		t.Fatalf("error log: want empty got=%q", got.ErrorLog)
	}
}

func TestRetryRejectsNonFailedPlan(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})

	if _, err := svc.Retry(context.Background(), plan.TenantID, plan.ID); !errors.Is(err, apierr.ErrInvalidState) {
		t.Fatalf("retry non-failed: want=%v got=%v", apierr.ErrInvalidState, err)
	}
}

func TestGetStatusSnapshot(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady, LatestScore: 88, CurrentIteration: 2})

	runID := uuid.New()
	itemID := uuid.New()
	if _, err := planRepo.MutateGenerationMeta(context.Background(), plan.TenantID, plan.ID, func(p *types.ContentPlan, meta *types.GenerationMeta) error {
		meta.AppendRun(types.Run{RunID: runID, ContentItemID: itemID, Score: 88})
		return nil
	}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	snap, err := svc.GetStatus(context.Background(), plan.TenantID, plan.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if snap.RunCount != 1 {
		t.Fatalf("run count: want=1 got=%d", snap.RunCount)
	}
	if snap.CurrentRunID == nil || *snap.CurrentRunID != runID {
		t.Fatalf("current run: want=%s got=%v", runID, snap.CurrentRunID)
	}
	if snap.LatestScore != 88 || snap.CurrentIteration != 2 {
		t.Fatalf("snapshot fields: got=%+v", snap)
	}
}

func TestGetPlanTenantIsolation(t *testing.T) {
	svc, planRepo := newPlanServiceFixture(t)
	plan := seedPlan(t, planRepo, &types.ContentPlan{})

	if _, err := svc.GetPlan(context.Background(), uuid.New(), plan.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("cross-tenant read: want=%v got=%v", apierr.ErrNotFound, err)
	}
}
