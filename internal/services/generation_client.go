package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/types"
)

type Draft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DraftRequest carries everything the generation collaborator needs for one
// draft: the plan's input parameters, optional research context, and the
// prior draft + validation feedback when refining.
type DraftRequest struct {
	Topic       string
	Description string
	Audience    string
	Tone        string
	Keywords    []string
	Style       types.GenerationParams

	ResearchSummary string

	PriorDraft *Draft
	Feedback   string

	// Channel is set when generating a per-channel variant of a final draft.
	Channel string
}

type GenerationService interface {
	GenerateDraft(ctx context.Context, req DraftRequest) (*Draft, error)
}

type generationService struct {
	log *logger.Logger
	ai  OpenAIClient
}

func NewGenerationService(baseLog *logger.Logger, ai OpenAIClient) GenerationService {
	return &generationService{
		log: baseLog.With("service", "GenerationService"),
		ai:  ai,
	}
}

var draftSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{"type": "string"},
		"body":  map[string]any{"type": "string"},
	},
	"required":             []string{"title", "body"},
	"additionalProperties": false,
}

func (s *generationService) GenerateDraft(ctx context.Context, req DraftRequest) (*Draft, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topic: %s\n", req.Topic))
	if req.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", req.Description))
	}
	if req.Audience != "" {
		sb.WriteString(fmt.Sprintf("Target audience: %s\n", req.Audience))
	}
	if req.Tone != "" {
		sb.WriteString(fmt.Sprintf("Tone: %s\n", req.Tone))
	}
	if len(req.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("SEO keywords: %s\n", strings.Join(req.Keywords, ", ")))
	}
	sb.WriteString(fmt.Sprintf(
		"Style levels (1-10): professionalism=%d creativity=%d humor=%d analysis_depth=%d strictness=%d\n",
		req.Style.Professionalism, req.Style.Creativity, req.Style.Humor, req.Style.AnalysisDepth, req.Style.Strictness,
	))
	if req.ResearchSummary != "" {
		sb.WriteString(fmt.Sprintf("\nCompetitive research:\n%s\n", truncate(req.ResearchSummary, 6000)))
	}
	if req.Channel != "" {
		sb.WriteString(fmt.Sprintf("\nAdapt the draft below into a variant for the %q channel, keeping the substance intact.\n", req.Channel))
	}
	if req.PriorDraft != nil {
		sb.WriteString(fmt.Sprintf("\nPrevious draft:\nTitle: %s\n%s\n", req.PriorDraft.Title, truncate(req.PriorDraft.Body, 12000)))
	}
	if req.Feedback != "" {
		sb.WriteString(fmt.Sprintf("\nValidator feedback to address:\n%s\n", req.Feedback))
	}

	obj, err := s.ai.GenerateJSON(ctx,
		"You write publishable long-form content drafts. Return a title and a markdown body.",
		sb.String(),
		"content_draft",
		draftSchema,
	)
	if err != nil {
		return nil, fmt.Errorf("generate draft: %w", err)
	}

	draft := &Draft{
		Title: strings.TrimSpace(fmt.Sprint(obj["title"])),
		Body:  fmt.Sprint(obj["body"]),
	}
	if draft.Title == "" || strings.TrimSpace(draft.Body) == "" {
		return nil, fmt.Errorf("generate draft: model returned empty title or body")
	}
	return draft, nil
}
