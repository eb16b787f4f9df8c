package types

import (
	"testing"
)

func TestPlanStatusActive(t *testing.T) {
	active := []PlanStatus{PlanStatusResearching, PlanStatusGenerating, PlanStatusRefining}
	for _, s := range active {
		if !s.Active() {
			t.Fatalf("status %s: want active", s)
		}
	}
	idle := []PlanStatus{PlanStatusPlanned, PlanStatusDraftReady, PlanStatusApproved, PlanStatusFailed, PlanStatusArchived}
	for _, s := range idle {
		if s.Active() {
			t.Fatalf("status %s: want idle", s)
		}
	}
}

func TestPlanStatusTransitions(t *testing.T) {
	cases := []struct {
		from PlanStatus
		to   PlanStatus
		ok   bool
	}{
		{PlanStatusPlanned, PlanStatusResearching, true},
		{PlanStatusPlanned, PlanStatusGenerating, true},
		{PlanStatusPlanned, PlanStatusApproved, false},
		{PlanStatusResearching, PlanStatusGenerating, true},
		{PlanStatusResearching, PlanStatusDraftReady, false},
		{PlanStatusGenerating, PlanStatusRefining, true},
		{PlanStatusRefining, PlanStatusRefining, true},
		{PlanStatusRefining, PlanStatusDraftReady, true},
		{PlanStatusRefining, PlanStatusApproved, false},
		{PlanStatusDraftReady, PlanStatusApproved, true},
		{PlanStatusDraftReady, PlanStatusResearching, true},
		{PlanStatusApproved, PlanStatusGenerating, true},
		{PlanStatusFailed, PlanStatusPlanned, true},
		{PlanStatusFailed, PlanStatusResearching, false},
		{PlanStatusArchived, PlanStatusPlanned, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Fatalf("transition %s -> %s: want=%v got=%v", c.from, c.to, c.ok, got)
		}
	}
}

func TestStartableStatusesExcludeActiveAndFailed(t *testing.T) {
	for _, s := range StartableStatuses() {
		if s.Active() {
			t.Fatalf("startable status %s must not be active", s)
		}
		if s == PlanStatusFailed {
			t.Fatalf("failed plans require an explicit retry before restarting")
		}
	}
}

func TestGenerationParamsClamp(t *testing.T) {
	p := GenerationParams{Professionalism: 0, Creativity: -3, Humor: 42, AnalysisDepth: 7, Strictness: 10}
	c := p.Clamp()
	if c.Professionalism != StyleLevelDefault {
		t.Fatalf("zero level: want=%d got=%d", StyleLevelDefault, c.Professionalism)
	}
	if c.Creativity != StyleLevelMin {
		t.Fatalf("below-range level: want=%d got=%d", StyleLevelMin, c.Creativity)
	}
	if c.Humor != StyleLevelMax {
		t.Fatalf("above-range level: want=%d got=%d", StyleLevelMax, c.Humor)
	}
	if c.AnalysisDepth != 7 || c.Strictness != 10 {
		t.Fatalf("in-range levels must be untouched: got=%+v", c)
	}
}

func TestContentPlanStyleDefaultsWhenUnset(t *testing.T) {
	plan := &ContentPlan{}
	style := plan.Style()
	if style.Professionalism != StyleLevelDefault || style.Strictness != StyleLevelDefault {
		t.Fatalf("unset style params must decode to defaults: got=%+v", style)
	}
}

func TestContentPlanGenerationMetaEmptyBlob(t *testing.T) {
	plan := &ContentPlan{}
	meta := plan.GenerationMeta()
	if meta == nil {
		t.Fatalf("empty blob must decode to empty meta, got nil")
	}
	if len(meta.RunHistory) != 0 || meta.CurrentRunID != nil || meta.PublishedRunID != nil {
		t.Fatalf("empty blob must decode to empty history: got=%+v", meta)
	}
}

func TestEncodeStringListNil(t *testing.T) {
	js := EncodeStringList(nil)
	if string(js) != "[]" {
		t.Fatalf("nil list encoding: want=[] got=%s", js)
	}
}
