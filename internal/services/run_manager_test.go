package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/draftforge/draftforge-backend/internal/apierr"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

type runManagerFixture struct {
	db       *gorm.DB
	planRepo repos.ContentPlanRepo
	itemRepo repos.ContentItemRepo
	validate *fakeValidationService
	manager  RunManagerService
}

func newRunManagerFixture(t *testing.T) *runManagerFixture {
	t.Helper()
	log := newTestLogger(t)
	db := newTestDB(t)
	planRepo := repos.NewContentPlanRepo(db, log)
	itemRepo := repos.NewContentItemRepo(db, log)
	validate := &fakeValidationService{}
	return &runManagerFixture{
		db:       db,
		planRepo: planRepo,
		itemRepo: itemRepo,
		validate: validate,
		manager:  NewRunManagerService(db, log, planRepo, itemRepo, validate),
	}
}

// seedRun persists a content item and appends a finalized run for it to the
// plan's metadata.
func (fx *runManagerFixture) seedRun(t *testing.T, plan *types.ContentPlan, score float64) types.Run {
	t.Helper()
	item := &types.ContentItem{
		ID:       uuid.New(),
		TenantID: plan.TenantID,
		PlanID:   &plan.ID,
		Title:    "Draft",
		Body:     "draft body",
	}
	runID := uuid.New()
	item.RunID = &runID
	if _, err := fx.itemRepo.Create(context.Background(), nil, []*types.ContentItem{item}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	var run types.Run
	if _, err := fx.planRepo.MutateGenerationMeta(context.Background(), plan.TenantID, plan.ID, func(p *types.ContentPlan, meta *types.GenerationMeta) error {
		meta.AppendRun(types.Run{
			RunID:         runID,
			ContentItemID: item.ID,
			Score:         score,
			Iterations:    2,
			RefinementHistory: []types.IterationRecord{
				{Iteration: 1, Score: score - 10, Status: types.IterationStatusFail},
				{Iteration: 2, Score: score, Status: types.IterationStatusPass},
			},
		})
		run = *meta.FindRun(runID)
		return nil
	}); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	return run
}

func TestSetRunStatusPublish(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)

	updated, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, run.RunID, types.RunStatusPublished)
	if err != nil {
		t.Fatalf("SetRunStatus: %v", err)
	}
	if updated.Status != types.PlanStatusApproved {
		t.Fatalf("plan status: want=%s got=%s", types.PlanStatusApproved, updated.Status)
	}
	meta := updated.GenerationMeta()
	if meta.PublishedRunID == nil || *meta.PublishedRunID != run.RunID {
		t.Fatalf("published pointer: want=%s got=%v", run.RunID, meta.PublishedRunID)
	}
	if meta.CurrentRunID != nil {
		t.Fatalf("current pointer after publish: want=nil got=%s", *meta.CurrentRunID)
	}
	if updated.GeneratedContentItemID == nil || *updated.GeneratedContentItemID != run.ContentItemID {
		t.Fatalf("generated item pointer: want=%s got=%v", run.ContentItemID, updated.GeneratedContentItemID)
	}
}

func TestSetRunStatusRestoreOlderRun(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	older := fx.seedRun(t, plan, 82)
	fx.seedRun(t, plan, 90)

	updated, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, older.RunID, types.RunStatusCurrent)
	if err != nil {
		t.Fatalf("SetRunStatus: %v", err)
	}
	meta := updated.GenerationMeta()
	if meta.CurrentRunID == nil || *meta.CurrentRunID != older.RunID {
		t.Fatalf("current pointer: want=%s got=%v", older.RunID, meta.CurrentRunID)
	}
	if updated.LatestScore != 82 {
		t.Fatalf("latest score follows restored run: want=82 got=%v", updated.LatestScore)
	}
	current := 0
	for _, r := range meta.RunHistory {
		if r.Status == types.RunStatusCurrent {
			current++
		}
	}
	if current != 1 {
		t.Fatalf("current run count: want=1 got=%d", current)
	}
}

func TestSetRunStatusRejectsActivePlan(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)
	if err := fx.planRepo.UpdateFields(context.Background(), nil, plan.TenantID, plan.ID, map[string]any{"status": types.PlanStatusRefining}); err != nil {
		t.Fatalf("force active: %v", err)
	}

	_, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, run.RunID, types.RunStatusPublished)
	if !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("active plan publish: want=%v got=%v", apierr.ErrConflict, err)
	}
}

func TestSetRunStatusUnknownRun(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	fx.seedRun(t, plan, 90)

	_, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, uuid.New(), types.RunStatusPublished)
	if !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("unknown run: want=%v got=%v", apierr.ErrNotFound, err)
	}
}

func TestSetRunStatusRejectsArchived(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)

	_, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, run.RunID, types.RunStatusArchived)
	if !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("archived target: want=%v got=%v", apierr.ErrInvalidInput, err)
	}
}

func TestUpdateRunContent(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)
	editor := uuid.New()

	err := fx.manager.UpdateRunContent(context.Background(), plan.TenantID, editor, plan.ID, run.RunID, "Edited title", "edited body", "fixed intro")
	if err != nil {
		t.Fatalf("UpdateRunContent: %v", err)
	}

	item, _ := fx.itemRepo.GetByID(context.Background(), nil, plan.TenantID, run.ContentItemID)
	if item.Title != "Edited title" || item.Body != "edited body" {
		t.Fatalf("item content: got=%q/%q", item.Title, item.Body)
	}
	if !item.HumanEdited {
		t.Fatalf("item human_edited: want=true")
	}

	got, _ := fx.planRepo.GetByID(context.Background(), nil, plan.TenantID, plan.ID)
	r := got.GenerationMeta().FindRun(run.RunID)
	if !r.HumanEdited || r.EditedBy == nil || *r.EditedBy != editor {
		t.Fatalf("run edit markers: got=%+v", r)
	}
	if r.EditNotes != "fixed intro" {
		t.Fatalf("edit notes: want=%q got=%q", "fixed intro", r.EditNotes)
	}
}

func TestUpdateRunContentRejectsEmptyBody(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)

	err := fx.manager.UpdateRunContent(context.Background(), plan.TenantID, uuid.New(), plan.ID, run.RunID, "Title", "   ", "")
	if !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("empty body: want=%v got=%v", apierr.ErrInvalidInput, err)
	}
}

func TestRerunValidationAppendsManualRecord(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	run := fx.seedRun(t, plan, 90)
	fx.validate.results = []*ValidationResult{passResult(93)}

	result, err := fx.manager.RerunValidation(context.Background(), plan.TenantID, plan.ID, run.RunID)
	if err != nil {
		t.Fatalf("RerunValidation: %v", err)
	}
	if result.Score != 93 {
		t.Fatalf("result score: want=93 got=%v", result.Score)
	}

	got, _ := fx.planRepo.GetByID(context.Background(), nil, plan.TenantID, plan.ID)
	r := got.GenerationMeta().FindRun(run.RunID)
	if r.Score != 93 {
		t.Fatalf("run score: want=93 got=%v", r.Score)
	}
	if r.Iterations != 2 {
		t.Fatalf("manual validation must not consume iterations: want=2 got=%d", r.Iterations)
	}
	last := r.RefinementHistory[len(r.RefinementHistory)-1]
	if !last.Manual {
		t.Fatalf("last record must be manual: got=%+v", last)
	}
	if last.Status != types.IterationStatusPass {
		t.Fatalf("manual record status: want=%s got=%s", types.IterationStatusPass, last.Status)
	}
	if got.LatestScore != 93 {
		t.Fatalf("plan latest score: want=93 got=%v", got.LatestScore)
	}
}

func TestDeletePlanDetachesPublishedContent(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusDraftReady})
	published := fx.seedRun(t, plan, 88)
	replaced := fx.seedRun(t, plan, 92)
	if _, err := fx.manager.SetRunStatus(context.Background(), plan.TenantID, plan.ID, published.RunID, types.RunStatusPublished); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := fx.manager.DeletePlan(context.Background(), plan.TenantID, plan.ID); err != nil {
		t.Fatalf("DeletePlan: %v", err)
	}

	// Published content survives with its linkage cleared.
	item, err := fx.itemRepo.GetByID(context.Background(), nil, plan.TenantID, published.ContentItemID)
	if err != nil {
		t.Fatalf("published item must survive: %v", err)
	}
	if item.PlanID != nil || item.RunID != nil {
		t.Fatalf("published item linkage: want=nil/nil got=%v/%v", item.PlanID, item.RunID)
	}

	// Unpublished content is removed with the plan.
	if _, err := fx.itemRepo.GetByID(context.Background(), nil, plan.TenantID, replaced.ContentItemID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("unpublished item: want=%v got=%v", apierr.ErrNotFound, err)
	}
	if _, err := fx.planRepo.GetByID(context.Background(), nil, plan.TenantID, plan.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("deleted plan: want=%v got=%v", apierr.ErrNotFound, err)
	}
}

func TestDeletePlanRejectsActive(t *testing.T) {
	fx := newRunManagerFixture(t)
	plan := seedPlan(t, fx.planRepo, &types.ContentPlan{Status: types.PlanStatusGenerating})
	if err := fx.manager.DeletePlan(context.Background(), plan.TenantID, plan.ID); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("active plan delete: want=%v got=%v", apierr.ErrConflict, err)
	}
}
