package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"authpilot-backend/models"

	"go.uber.org/zap"
)

const analysisSystemPrompt = `You are an administrative assistant for healthcare prior authorization and appeals. Generate a missing documentation checklist based on case facts and policy requirements.

Return ONLY valid JSON with no markdown formatting.`

const (
	analysisTemperature = 0.2
	excerptPromptLimit  = 500
	maxAnalysisExcerpts = 5
)

// AnalysisService classifies the denial and produces the
// missing-documentation checklist by cross-referencing policy criteria
// against the extracted facts.
type AnalysisService struct {
	generator TextGenerator
	logger    *zap.Logger
}

// NewAnalysisService creates a denial analysis service.
func NewAnalysisService(generator TextGenerator, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisService{generator: generator, logger: logger}
}

// Analyze produces the DenialAnalysis for a case. The checklist is
// overwritten wholesale on every run. Checklist items keep a citation
// only when it is the exact citation string of one of the supplied policy
// matches; anything else the model invents is stripped.
func (s *AnalysisService) Analyze(ctx context.Context, facts *models.ExtractedFacts, matches []models.PolicyMatch) (*models.DenialAnalysis, error) {
	if facts == nil {
		return nil, fmt.Errorf("%w: extracted facts required for analysis", ErrInputMissing)
	}

	prompt, err := buildAnalysisPrompt(facts, matches)
	if err != nil {
		return nil, err
	}

	response, err := s.generator.Generate(ctx, analysisSystemPrompt, prompt, analysisTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	blob, err := extractJSONBlock(response, '[', ']')
	if err != nil {
		return nil, err
	}

	var checklist []models.ChecklistItem
	if err := decodeValidated(blob, checklistSchema, &checklist); err != nil {
		return nil, err
	}

	validCitations := make(map[string]bool, len(matches))
	for _, m := range matches {
		validCitations[m.Citation()] = true
	}
	for i := range checklist {
		checklist[i].Status = normalizeChecklistStatus(checklist[i].Status)
		if checklist[i].Citation != "" && !validCitations[checklist[i].Citation] {
			s.logger.Warn("dropping ungrounded checklist citation",
				zap.String("item", checklist[i].Item),
				zap.String("citation", checklist[i].Citation))
			checklist[i].Citation = ""
		}
	}

	category := models.CategoryOther
	if facts.DenialReasonCategory != nil {
		category = models.NormalizeDenialCategory(*facts.DenialReasonCategory)
	}

	return &models.DenialAnalysis{
		DenialCategory: category,
		DenialReasons:  facts.DenialReasons,
		Checklist:      checklist,
		AnalyzedAt:     time.Now().UTC(),
	}, nil
}

func buildAnalysisPrompt(facts *models.ExtractedFacts, matches []models.PolicyMatch) (string, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal facts: %w", err)
	}

	excerpts := "No matching policies found"
	if len(matches) > 0 {
		var sb strings.Builder
		limit := len(matches)
		if limit > maxAnalysisExcerpts {
			limit = maxAnalysisExcerpts
		}
		for _, m := range matches[:limit] {
			sb.WriteString(m.Citation())
			sb.WriteString(": ")
			sb.WriteString(truncate(m.Text, excerptPromptLimit))
			sb.WriteString("\n")
		}
		excerpts = sb.String()
	}

	return fmt.Sprintf(`Using the case facts and policy excerpts, produce a checklist of required documentation.

For each item decide its status:
- "Present" if the facts affirmatively confirm it
- "Missing" if policy requires it and the facts contradict or omit it
- "Unclear" if the facts are ambiguous

If an item is required by one of the policy excerpts below, set
required_by_policy_citation to that excerpt's citation string EXACTLY as
shown. If the item has no policy grounding, omit the citation entirely —
never invent one.

CASE FACTS:
%s

POLICY EXCERPTS:
%s

Return JSON array:
[
  {"item":"...", "required_by_policy_citation":"[CITATION: ...]", "status":"Present|Missing|Unclear", "notes":"..."}
]`, string(factsJSON), excerpts), nil
}

func normalizeChecklistStatus(s models.ChecklistStatus) models.ChecklistStatus {
	switch s {
	case models.ChecklistPresent, models.ChecklistMissing, models.ChecklistUnclear:
		return s
	}
	// older prompts said "Unknown"; ambiguity maps to Unclear
	return models.ChecklistUnclear
}
