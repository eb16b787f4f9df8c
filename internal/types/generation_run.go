package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle of one finalized generation attempt. At most
// one run per plan is current and at most one is published; every other run
// is archived.
type RunStatus string

const (
	RunStatusCurrent   RunStatus = "current"
	RunStatusPublished RunStatus = "published"
	RunStatusArchived  RunStatus = "archived"
)

// IterationStatus is the outcome of a single generate→validate cycle.
type IterationStatus string

const (
	IterationStatusPass  IterationStatus = "PASS"
	IterationStatusFail  IterationStatus = "FAIL"
	IterationStatusError IterationStatus = "ERROR"
)

// IterationRecord captures one validation pass inside a run's refinement
// history. Manual records come from standalone re-validations and do not
// count against the plan's iteration budget.
type IterationRecord struct {
	Iteration       int             `json:"iteration"`
	Score           float64         `json:"score"`
	Status          IterationStatus `json:"status"`
	Issues          []string        `json:"issues,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Manual          bool            `json:"manual,omitempty"`
}

// Run is one finalized attempt at producing a draft for a plan, embedded in
// the plan's generation metadata rather than stored as its own table.
type Run struct {
	RunID         uuid.UUID `json:"run_id"`
	ContentItemID uuid.UUID `json:"content_item_id"`
	Status        RunStatus `json:"status"`
	Score         float64   `json:"score"`
	Iterations    int       `json:"iterations"`

	Parameters        GenerationParams  `json:"parameters"`
	RefinementHistory []IterationRecord `json:"refinement_history,omitempty"`

	SubScores          map[string]float64 `json:"sub_scores,omitempty"`
	ValidationMetadata map[string]any     `json:"validation_metadata,omitempty"`
	Issues             []string           `json:"issues,omitempty"`
	Recommendations    []string           `json:"recommendations,omitempty"`
	Strengths          []string           `json:"strengths,omitempty"`

	HumanEdited bool       `json:"human_edited,omitempty"`
	EditedBy    *uuid.UUID `json:"edited_by,omitempty"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	EditNotes   string     `json:"edit_notes,omitempty"`

	// ChannelVariants maps a channel name to the content item holding the
	// variant generated for it.
	ChannelVariants map[string]uuid.UUID `json:"channel_variants,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// GenerationMeta is the embedded, append-mostly run history owned by a
// ContentPlan. It is mutated only through the methods below so the
// single-current/single-published invariant holds across every mutation.
type GenerationMeta struct {
	RunHistory     []Run      `json:"run_history"`
	CurrentRunID   *uuid.UUID `json:"current_run_id,omitempty"`
	PublishedRunID *uuid.UUID `json:"published_run_id,omitempty"`
}

// FindRun returns a pointer into the history, or nil when absent.
func (m *GenerationMeta) FindRun(runID uuid.UUID) *Run {
	for i := range m.RunHistory {
		if m.RunHistory[i].RunID == runID {
			return &m.RunHistory[i]
		}
	}
	return nil
}

// AppendRun adds a freshly finalized run as the current one, archiving every
// other run in the history.
func (m *GenerationMeta) AppendRun(run Run) {
	for i := range m.RunHistory {
		m.RunHistory[i].Status = RunStatusArchived
	}
	run.Status = RunStatusCurrent
	m.RunHistory = append(m.RunHistory, run)
	id := run.RunID
	m.CurrentRunID = &id
	m.PublishedRunID = nil
}

// Promote sets the target run to status (current or published) and archives
// all other runs in one mutation. Returns false when the run is unknown.
func (m *GenerationMeta) Promote(runID uuid.UUID, status RunStatus) bool {
	target := m.FindRun(runID)
	if target == nil {
		return false
	}
	for i := range m.RunHistory {
		m.RunHistory[i].Status = RunStatusArchived
	}
	target.Status = status
	id := target.RunID
	switch status {
	case RunStatusPublished:
		m.PublishedRunID = &id
		m.CurrentRunID = nil
	default:
		m.CurrentRunID = &id
		m.PublishedRunID = nil
	}
	return true
}

// ActiveRun returns the run a reader should see by default: the published
// run when one exists, otherwise the current one.
func (m *GenerationMeta) ActiveRun() *Run {
	if m.PublishedRunID != nil {
		if r := m.FindRun(*m.PublishedRunID); r != nil {
			return r
		}
	}
	if m.CurrentRunID != nil {
		if r := m.FindRun(*m.CurrentRunID); r != nil {
			return r
		}
	}
	return nil
}
