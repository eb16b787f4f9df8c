package services

import (
	"github.com/google/uuid"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/sse"
)

type ProgressStage string

const (
	StageQueued           ProgressStage = "queued"
	StageResearching      ProgressStage = "researching"
	StageResearchComplete ProgressStage = "research_complete"
	StageGenerating       ProgressStage = "generating"
	StageCompleted        ProgressStage = "completed"
	StageError            ProgressStage = "error"
)

// ProgressSink receives stage-boundary events from the pipeline. Sinks are
// fire-and-forget: errors and panics are logged by the pipeline and never
// propagate into it.
type ProgressSink interface {
	OnProgress(stage ProgressStage, message string, data map[string]any) error
}

// emitProgress delivers one event to the sink, absorbing any failure.
func emitProgress(log *logger.Logger, sink ProgressSink, stage ProgressStage, message string, data map[string]any) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Warn("Progress sink panicked", "stage", stage, "panic", r)
		}
	}()
	if err := sink.OnProgress(stage, message, data); err != nil {
		log.Warn("Progress sink failed", "stage", stage, "error", err)
	}
}

// sseProgressSink broadcasts pipeline progress on the tenant's SSE channel.
type sseProgressSink struct {
	hub      *sse.SSEHub
	tenantID uuid.UUID
	planID   uuid.UUID
}

func NewSSEProgressSink(hub *sse.SSEHub, tenantID, planID uuid.UUID) ProgressSink {
	return &sseProgressSink{hub: hub, tenantID: tenantID, planID: planID}
}

func (s *sseProgressSink) OnProgress(stage ProgressStage, message string, data map[string]any) error {
	if s.hub == nil {
		return nil
	}
	event := sse.SSEEventPlanProgress
	switch stage {
	case StageCompleted:
		event = sse.SSEEventPlanCompleted
	case StageError:
		event = sse.SSEEventPlanFailed
	}
	payload := map[string]any{
		"plan_id": s.planID,
		"stage":   stage,
		"message": message,
	}
	for k, v := range data {
		payload[k] = v
	}
	s.hub.Broadcast(sse.SSEMessage{
		Channel: s.tenantID.String(),
		Event:   event,
		Data:    payload,
	})
	return nil
}
