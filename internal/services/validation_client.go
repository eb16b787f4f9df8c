package services

import (
	"context"
	"fmt"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/types"
)

type ValidationResult struct {
	Score           float64                `json:"score"`
	Status          types.IterationStatus  `json:"status"`
	Issues          []string               `json:"issues"`
	Recommendations []string               `json:"recommendations"`
	Strengths       []string               `json:"strengths"`
	SubScores       map[string]float64     `json:"sub_scores"`
	Metadata        map[string]any         `json:"metadata,omitempty"`
}

// ValidationService scores a draft 0-100. Transport failures return an
// error; malformed model output returns a zero-score ERROR result instead,
// so the refinement loop can keep going.
type ValidationService interface {
	Validate(ctx context.Context, topic string, draft *Draft) (*ValidationResult, error)
}

type validationService struct {
	log *logger.Logger
	ai  OpenAIClient
}

func NewValidationService(baseLog *logger.Logger, ai OpenAIClient) ValidationService {
	return &validationService{
		log: baseLog.With("service", "ValidationService"),
		ai:  ai,
	}
}

var validationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"score": map[string]any{"type": "number"},
		"sub_scores": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"clarity":      map[string]any{"type": "number"},
				"accuracy":     map[string]any{"type": "number"},
				"engagement":   map[string]any{"type": "number"},
				"seo":          map[string]any{"type": "number"},
				"completeness": map[string]any{"type": "number"},
			},
			"required":             []string{"clarity", "accuracy", "engagement", "seo", "completeness"},
			"additionalProperties": false,
		},
		"issues":          map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"recommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"strengths":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
	"required":             []string{"score", "sub_scores", "issues", "recommendations", "strengths"},
	"additionalProperties": false,
}

func (s *validationService) Validate(ctx context.Context, topic string, draft *Draft) (*ValidationResult, error) {
	obj, err := s.ai.GenerateJSON(ctx,
		"You are a strict content quality reviewer. Score the draft 0-100 and itemize issues, recommendations, and strengths.",
		fmt.Sprintf("Topic: %s\n\nDraft title: %s\n\nDraft body:\n%s", topic, draft.Title, truncate(draft.Body, 16000)),
		"quality_validation",
		validationSchema,
	)
	if err != nil {
		return nil, fmt.Errorf("validate draft: %w", err)
	}

	scoreRaw, ok := obj["score"]
	if !ok {
		s.log.Warn("Validator returned no score, recording ERROR iteration", "topic", topic)
		return errorResult(), nil
	}
	score := floatFromAny(scoreRaw, -1)
	if score < 0 || score > 100 {
		s.log.Warn("Validator returned out-of-range score, recording ERROR iteration", "topic", topic, "score", scoreRaw)
		return errorResult(), nil
	}

	result := &ValidationResult{
		Score:           score,
		Status:          types.IterationStatusFail,
		Issues:          toStringSlice(obj["issues"]),
		Recommendations: toStringSlice(obj["recommendations"]),
		Strengths:       toStringSlice(obj["strengths"]),
		SubScores:       map[string]float64{},
	}
	if subs, ok := obj["sub_scores"].(map[string]any); ok {
		for k, v := range subs {
			result.SubScores[k] = floatFromAny(v, 0)
		}
	}
	return result, nil
}

func errorResult() *ValidationResult {
	return &ValidationResult{
		Score:           0,
		Status:          types.IterationStatusError,
		Issues:          []string{"validator returned malformed output"},
		Recommendations: []string{},
		Strengths:       []string{},
		SubScores:       map[string]float64{},
	}
}
