package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.ContentPlan{}, &types.ContentItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPlan(t *testing.T, planRepo repos.ContentPlanRepo, plan *types.ContentPlan) *types.ContentPlan {
	t.Helper()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if plan.TenantID == uuid.Nil {
		plan.TenantID = uuid.New()
	}
	if plan.Title == "" {
		plan.Title = "How churn prediction works"
	}
	if plan.MinQualityScore == 0 {
		plan.MinQualityScore = 85
	}
	if plan.MaxIterations == 0 {
		plan.MaxIterations = 3
	}
	if plan.Status == "" {
		plan.Status = types.PlanStatusPlanned
	}
	if _, err := planRepo.Create(context.Background(), nil, []*types.ContentPlan{plan}); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

type fakeResearchService struct {
	calls  int
	result *ResearchResult
}

func (f *fakeResearchService) Research(_ context.Context, topic string, _ []string) *ResearchResult {
	f.calls++
	if f.result != nil {
		return f.result
	}
	return &ResearchResult{
		CompetitorSummaries: []CompetitorSummary{{URL: "https://example.com", Title: "Competitor", Summary: "covers basics"}},
		GapAnalysis:         "no coverage of " + topic,
	}
}

// fakeGenerationService serves scripted drafts for refinement requests and a
// channel-named draft for variant requests.
type fakeGenerationService struct {
	mu       sync.Mutex
	drafts   []*Draft
	next     int
	requests []DraftRequest
	errOn    int // 1-based call index that fails, 0 for never
	variants map[string]error
}

func (f *fakeGenerationService) GenerateDraft(_ context.Context, req DraftRequest) (*Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if req.Channel != "" {
		if err, ok := f.variants[req.Channel]; ok && err != nil {
			return nil, err
		}
		return &Draft{Title: "variant for " + req.Channel, Body: "body for " + req.Channel}, nil
	}

	call := f.next + 1
	if f.errOn != 0 && call == f.errOn {
		return nil, fmt.Errorf("model unavailable")
	}
	if f.next >= len(f.drafts) {
		return nil, fmt.Errorf("fake generation exhausted after %d drafts", len(f.drafts))
	}
	d := f.drafts[f.next]
	f.next++
	return d, nil
}

type fakeValidationService struct {
	mu      sync.Mutex
	results []*ValidationResult
	errs    []error
	next    int
	drafts  []*Draft
}

func (f *fakeValidationService) Validate(_ context.Context, _ string, draft *Draft) (*ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	i := f.next
	f.next++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.results) {
		return nil, fmt.Errorf("fake validation exhausted after %d results", len(f.results))
	}
	return f.results[i], nil
}

func passResult(score float64) *ValidationResult {
	return &ValidationResult{
		Score:           score,
		Status:          types.IterationStatusFail,
		Issues:          []string{"minor issues"},
		Recommendations: []string{"tighten intro"},
		Strengths:       []string{"clear structure"},
		SubScores:       map[string]float64{"clarity": score, "seo": score},
	}
}

type recordedEvent struct {
	Stage   ProgressStage
	Message string
	Data    map[string]any
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) OnProgress(stage ProgressStage, message string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{Stage: stage, Message: message, Data: data})
	return nil
}

type panicSink struct{}

func (panicSink) OnProgress(ProgressStage, string, map[string]any) error {
	panic("sink exploded")
}

func (s *recordingSink) stages() []ProgressStage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProgressStage, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Stage)
	}
	return out
}
