package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanStatus is the content plan state machine. The status column doubles as
// the mutual-exclusion flag for processing: claiming a plan is a transition
// out of an idle status, releasing it is a transition into a terminal or
// idle status.
type PlanStatus string

const (
	PlanStatusPlanned     PlanStatus = "planned"
	PlanStatusResearching PlanStatus = "researching"
	PlanStatusGenerating  PlanStatus = "generating"
	PlanStatusRefining    PlanStatus = "refining"
	PlanStatusDraftReady  PlanStatus = "draft_ready"
	PlanStatusApproved    PlanStatus = "approved"
	PlanStatusFailed      PlanStatus = "failed"
	PlanStatusArchived    PlanStatus = "archived"
)

// Active reports whether the plan is currently being processed. New start
// requests against an active plan are rejected with a conflict.
func (s PlanStatus) Active() bool {
	switch s {
	case PlanStatusResearching, PlanStatusGenerating, PlanStatusRefining:
		return true
	}
	return false
}

var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusPlanned:     {PlanStatusResearching, PlanStatusGenerating, PlanStatusArchived},
	PlanStatusResearching: {PlanStatusGenerating, PlanStatusFailed},
	PlanStatusGenerating:  {PlanStatusRefining, PlanStatusFailed},
	PlanStatusRefining:    {PlanStatusRefining, PlanStatusDraftReady, PlanStatusFailed},
	PlanStatusDraftReady:  {PlanStatusResearching, PlanStatusGenerating, PlanStatusApproved, PlanStatusArchived},
	PlanStatusApproved:    {PlanStatusResearching, PlanStatusGenerating, PlanStatusArchived},
	PlanStatusFailed:      {PlanStatusPlanned, PlanStatusArchived},
	PlanStatusArchived:    {},
}

// CanTransition reports whether from → to is a legal edge in the plan state
// machine.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	for _, next := range planTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// StartableStatuses are the idle statuses from which processing may be
// claimed. A failed plan must go through an explicit retry first.
func StartableStatuses() []PlanStatus {
	return []PlanStatus{PlanStatusPlanned, PlanStatusDraftReady, PlanStatusApproved}
}

// GenerationParams are the style knobs snapshotted into each run. Every
// level is clamped to 1..10.
type GenerationParams struct {
	Professionalism int `json:"professionalism"`
	Creativity      int `json:"creativity"`
	Humor           int `json:"humor"`
	AnalysisDepth   int `json:"analysis_depth"`
	Strictness      int `json:"strictness"`
}

const (
	StyleLevelMin     = 1
	StyleLevelMax     = 10
	StyleLevelDefault = 5

	MinQualityScoreFloor   = 80
	MinQualityScoreCeiling = 100
	MaxIterationsFloor     = 1
	MaxIterationsCeiling   = 5
)

func clampLevel(v int) int {
	if v == 0 {
		return StyleLevelDefault
	}
	if v < StyleLevelMin {
		return StyleLevelMin
	}
	if v > StyleLevelMax {
		return StyleLevelMax
	}
	return v
}

// Clamp normalizes every style level into range, treating zero as unset.
func (p GenerationParams) Clamp() GenerationParams {
	return GenerationParams{
		Professionalism: clampLevel(p.Professionalism),
		Creativity:      clampLevel(p.Creativity),
		Humor:           clampLevel(p.Humor),
		AnalysisDepth:   clampLevel(p.AnalysisDepth),
		Strictness:      clampLevel(p.Strictness),
	}
}

type ContentPlan struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`

	Title           string         `gorm:"not null" json:"title"`
	Description     string         `json:"description"`
	TargetChannels  datatypes.JSON `gorm:"type:jsonb" json:"target_channels"`
	TargetAudience  string         `json:"target_audience"`
	Tone            string         `json:"tone"`
	SEOKeywords     datatypes.JSON `gorm:"type:jsonb" json:"seo_keywords"`
	CompetitorURLs  datatypes.JSON `gorm:"type:jsonb" json:"competitor_urls"`
	MinQualityScore int            `gorm:"not null;default:85" json:"min_quality_score"`
	MaxIterations   int            `gorm:"not null;default:3" json:"max_iterations"`
	SkipResearch    bool           `gorm:"not null;default:false" json:"skip_research"`
	StyleParams     datatypes.JSON `gorm:"type:jsonb" json:"style_params"`

	Status           PlanStatus `gorm:"column:status;not null;index" json:"status"`
	CurrentIteration int        `gorm:"not null;default:0" json:"current_iteration"`
	LatestScore      float64    `gorm:"not null;default:0" json:"latest_score"`
	RetryCount       int        `gorm:"not null;default:0" json:"retry_count"`
	ErrorLog         string     `json:"error_log"`

	ResearchData           datatypes.JSON `gorm:"type:jsonb" json:"research_data,omitempty"`
	GenerationMetadata     datatypes.JSON `gorm:"type:jsonb" json:"generation_metadata"`
	GeneratedContentItemID *uuid.UUID     `gorm:"type:uuid" json:"generated_content_item_id,omitempty"`

	CreatedBy uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	UpdatedBy uuid.UUID      `gorm:"type:uuid" json:"updated_by"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ContentPlan) TableName() string { return "content_plan" }

// Style decodes the stored style params, falling back to defaults.
func (p *ContentPlan) Style() GenerationParams {
	var gp GenerationParams
	if len(p.StyleParams) > 0 {
		_ = json.Unmarshal(p.StyleParams, &gp)
	}
	return gp.Clamp()
}

func (p *ContentPlan) TargetChannelList() []string { return decodeStringList(p.TargetChannels) }
func (p *ContentPlan) SEOKeywordList() []string    { return decodeStringList(p.SEOKeywords) }
func (p *ContentPlan) CompetitorURLList() []string { return decodeStringList(p.CompetitorURLs) }

// GenerationMeta decodes the embedded run history blob. A missing or empty
// blob decodes to an empty history.
func (p *ContentPlan) GenerationMeta() *GenerationMeta {
	meta := &GenerationMeta{}
	if len(p.GenerationMetadata) > 0 {
		_ = json.Unmarshal(p.GenerationMetadata, meta)
	}
	return meta
}

func decodeStringList(js datatypes.JSON) []string {
	if len(js) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(js, &out); err != nil {
		return []string{}
	}
	return out
}

// EncodeStringList marshals a string slice for a jsonb column.
func EncodeStringList(list []string) datatypes.JSON {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return datatypes.JSON(b)
}

// EncodeJSON marshals any value for a jsonb column.
func EncodeJSON(v any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
