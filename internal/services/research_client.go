package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/draftforge/draftforge-backend/internal/logger"
)

type CompetitorSummary struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type ResearchResult struct {
	CompetitorSummaries []CompetitorSummary `json:"competitor_summaries"`
	GapAnalysis         string              `json:"gap_analysis"`
	// Degraded marks a placeholder result produced after a research failure.
	// The pipeline still generates with it, just without competitive context.
	Degraded bool `json:"degraded,omitempty"`
}

// ResearchService collects competitive context for a topic. It never fails
// hard: any error path yields a degraded result so generation can proceed.
type ResearchService interface {
	Research(ctx context.Context, topic string, competitorURLs []string) *ResearchResult
}

type researchService struct {
	log        *logger.Logger
	ai         OpenAIClient
	httpClient *http.Client
}

func NewResearchService(baseLog *logger.Logger, ai OpenAIClient) ResearchService {
	return &researchService{
		log:        baseLog.With("service", "ResearchService"),
		ai:         ai,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

func (s *researchService) Research(ctx context.Context, topic string, competitorURLs []string) *ResearchResult {
	excerpts := s.fetchCompetitorExcerpts(ctx, competitorURLs)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Topic: %s\n\n", topic))
	if len(excerpts) == 0 {
		sb.WriteString("No competitor pages could be fetched; analyze the topic on general knowledge.\n")
	}
	for url, text := range excerpts {
		sb.WriteString(fmt.Sprintf("Competitor page %s:\n%s\n\n", url, truncate(text, 4000)))
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"competitor_summaries": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"url":     map[string]any{"type": "string"},
						"title":   map[string]any{"type": "string"},
						"summary": map[string]any{"type": "string"},
					},
					"required":             []string{"url", "title", "summary"},
					"additionalProperties": false,
				},
			},
			"gap_analysis": map[string]any{"type": "string"},
		},
		"required":             []string{"competitor_summaries", "gap_analysis"},
		"additionalProperties": false,
	}

	obj, err := s.ai.GenerateJSON(ctx,
		"You analyze competitor content and identify coverage gaps a new piece should fill.",
		sb.String(),
		"competitive_research",
		schema,
	)
	if err != nil {
		s.log.Warn("Research degraded to placeholder", "topic", topic, "error", err)
		return &ResearchResult{
			CompetitorSummaries: []CompetitorSummary{},
			GapAnalysis:         "",
			Degraded:            true,
		}
	}

	out := &ResearchResult{GapAnalysis: fmt.Sprint(obj["gap_analysis"])}
	if raw, ok := obj["competitor_summaries"].([]any); ok {
		for _, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out.CompetitorSummaries = append(out.CompetitorSummaries, CompetitorSummary{
				URL:     fmt.Sprint(m["url"]),
				Title:   fmt.Sprint(m["title"]),
				Summary: fmt.Sprint(m["summary"]),
			})
		}
	}
	if out.CompetitorSummaries == nil {
		out.CompetitorSummaries = []CompetitorSummary{}
	}
	return out
}

// fetchCompetitorExcerpts downloads each competitor page and extracts its
// visible text. Individual fetch failures are logged and skipped.
func (s *researchService) fetchCompetitorExcerpts(ctx context.Context, urls []string) map[string]string {
	out := make(map[string]string, len(urls))
	for _, pageURL := range urls {
		pageURL = strings.TrimSpace(pageURL)
		if pageURL == "" {
			continue
		}
		text, err := s.fetchPageText(ctx, pageURL)
		if err != nil {
			s.log.Warn("Skipping competitor page", "url", pageURL, "error", err)
			continue
		}
		if text != "" {
			out[pageURL] = text
		}
	}
	return out
}

func (s *researchService) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "draftforge-research/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse document: %w", err)
	}

	doc.Find("script, style, nav, footer").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString("\n")
	}
	doc.Find("h1, h2, h3, p, li").Each(func(_ int, sel *goquery.Selection) {
		line := strings.TrimSpace(sel.Text())
		if line == "" {
			return
		}
		if sb.Len() > 8000 {
			return
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	})
	return strings.TrimSpace(sb.String()), nil
}
