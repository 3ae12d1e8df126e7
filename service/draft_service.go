package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"authpilot-backend/models"

	"go.uber.org/zap"
)

const draftSystemPrompt = `You are an administrative assistant for healthcare prior authorization and appeals. Draft a first-level appeal letter.

Hard rules:
- If information is missing, ask for it or list it as "Missing".
- Do not invent clinical facts, codes, dates, or policy criteria.
- Every policy-based claim must include a citation in the exact form given with each policy excerpt.
- If you cannot find support in the retrieved policy text, say so.
- Use a professional, concise tone suitable for payer appeals.

Return ONLY valid JSON with no markdown formatting.`

const (
	maxDraftExcerpts      = 5
	draftExcerptTextLimit = 500
)

var citationPattern = regexp.MustCompile(`\[CITATION:[^\]]+\]`)

// Reviewable-gate reasons. Deterministic so the UI can present them and
// tests can assert them.
const (
	ReasonNoPolicySupport   = "no policy support found"
	ReasonBelowSimilarity   = "no policy match meets the similarity threshold"
	ReasonNoCitationsInBody = "letter contains no policy citations"
)

// DraftService synthesizes facts, policy matches and the denial analysis
// into an appeal letter. Generation is a pure function of its inputs plus
// the temperature parameter: nothing is cached between calls, so
// regeneration may legitimately produce a different letter.
type DraftService struct {
	generator     TextGenerator
	minSimilarity float64
	logger        *zap.Logger
}

// NewDraftService creates a draft generation service.
func NewDraftService(generator TextGenerator, minSimilarity float64, logger *zap.Logger) *DraftService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftService{generator: generator, minSimilarity: minSimilarity, logger: logger}
}

// Generate produces a GeneratedDraft. The reviewable flag is computed
// here, never taken from the model: true only when the letter body
// contains at least one citation token and at least one policy match
// scores at or above the configured similarity threshold.
func (s *DraftService) Generate(
	ctx context.Context,
	c *models.Case,
	facts *models.ExtractedFacts,
	matches []models.PolicyMatch,
	analysis *models.DenialAnalysis,
	tmpl *models.Template,
	temperature float32,
) (*models.GeneratedDraft, error) {
	if facts == nil {
		return nil, fmt.Errorf("%w: extracted facts required for generation", ErrInputMissing)
	}

	prompt, err := buildDraftPrompt(c, facts, matches, tmpl)
	if err != nil {
		return nil, err
	}

	response, err := s.generator.Generate(ctx, draftSystemPrompt, prompt, temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	blob, err := extractJSONBlock(response, '{', '}')
	if err != nil {
		return nil, err
	}

	var parsed struct {
		AppealLetter string `json:"appeal_letter"`
	}
	if err := decodeValidated(blob, draftSchema, &parsed); err != nil {
		return nil, err
	}

	letter := substitutePlaceholders(parsed.AppealLetter, placeholderValues(c, facts))

	reviewable, reason := s.computeReviewable(letter, matches)
	if !reviewable {
		s.logger.Info("draft not reviewable",
			zap.String("case_id", c.ID.String()),
			zap.String("reason", reason))
	}

	return &models.GeneratedDraft{
		Reviewable:           reviewable,
		ReviewableReason:     reason,
		AppealLetter:         letter,
		AttachmentsChecklist: attachmentsFromAnalysis(analysis),
		CitationsUsed:        citationsInOrder(letter),
		GeneratedAt:          time.Now().UTC(),
	}, nil
}

func buildDraftPrompt(c *models.Case, facts *models.ExtractedFacts, matches []models.PolicyMatch, tmpl *models.Template) (string, error) {
	type promptExcerpt struct {
		PolicyName    string `json:"policy_name"`
		EffectiveDate string `json:"effective_date"`
		Section       string `json:"section"`
		Page          int    `json:"page"`
		ExcerptID     string `json:"excerpt_id"`
		Citation      string `json:"citation"`
		Text          string `json:"text"`
	}

	limit := len(matches)
	if limit > maxDraftExcerpts {
		limit = maxDraftExcerpts
	}
	excerpts := make([]promptExcerpt, 0, limit)
	for _, m := range matches[:limit] {
		excerpts = append(excerpts, promptExcerpt{
			PolicyName:    m.PolicyName,
			EffectiveDate: m.EffectiveDate,
			Section:       m.Section,
			Page:          m.Page,
			ExcerptID:     m.ExcerptID.String(),
			Citation:      m.Citation(),
			Text:          truncate(m.Text, draftExcerptTextLimit),
		})
	}
	excerptsJSON, err := json.MarshalIndent(excerpts, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal excerpts: %w", err)
	}

	caseJSON, err := json.MarshalIndent(map[string]interface{}{
		"payer":           c.Payer,
		"state":           c.State,
		"cpt_codes":       c.CPTCodes,
		"icd10_codes":     c.ICD10Codes,
		"due_date":        c.DueDate,
		"patient_name":    "[PATIENT NAME]",
		"extracted_facts": facts,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal case: %w", err)
	}

	var templateSection string
	if tmpl != nil {
		templateSection = fmt.Sprintf(`
TEMPLATE (type: %s, tone: %s):
Follow the structure and tone of this template. Leave any placeholder token
you cannot fill exactly as written (e.g. [PAYER]); do not drop or invent
placeholder values.
%s
`, tmpl.Type, tmpl.Tone, tmpl.Content)
	}

	return fmt.Sprintf(`Draft a first-level appeal letter using:
- the extracted case facts (CASE_JSON)
- the retrieved policy excerpts (POLICY_EXCERPTS)
%s
Requirements:
- Address the denial reasons explicitly.
- Cite payer policy excerpts whenever you reference criteria or coverage rules, using each excerpt's "citation" string verbatim.
- If the excerpts do not support the appeal, state that plainly.
- Include:
  1) short executive summary
  2) case background (service requested, codes, dates)
  3) point-by-point response to denial reason(s)
  4) attachments checklist
  5) citations section listing each excerpt used

CASE_JSON:
%s

POLICY_EXCERPTS:
%s

Return:
{
  "reviewable": true/false,
  "appeal_letter": "...",
  "attachments_checklist": ["..."],
  "citations_used": ["..."]
}`, templateSection, string(caseJSON), string(excerptsJSON)), nil
}

func (s *DraftService) computeReviewable(letter string, matches []models.PolicyMatch) (bool, string) {
	if len(matches) == 0 {
		return false, ReasonNoPolicySupport
	}

	supported := false
	for _, m := range matches {
		if m.Score >= s.minSimilarity {
			supported = true
			break
		}
	}
	if !supported {
		return false, ReasonBelowSimilarity
	}

	if !citationPattern.MatchString(letter) {
		return false, ReasonNoCitationsInBody
	}

	return true, ""
}

// placeholderValues maps template tokens to known case values. Tokens
// whose value is unknown are omitted so they survive verbatim in the
// letter for the UI to flag.
func placeholderValues(c *models.Case, facts *models.ExtractedFacts) map[string]string {
	values := map[string]string{}
	if c.Payer != "" {
		values["[PAYER]"] = c.Payer
	}
	if c.State != "" {
		values["[STATE]"] = c.State
	}
	if c.DueDate != "" {
		values["[DUE DATE]"] = c.DueDate
	}
	if len(c.CPTCodes) > 0 {
		values["[CPT CODES]"] = strings.Join(c.CPTCodes, ", ")
	}
	if len(c.ICD10Codes) > 0 {
		values["[ICD10 CODES]"] = strings.Join(c.ICD10Codes, ", ")
	}
	if c.PatientName != nil && *c.PatientName != "" {
		values["[PATIENT NAME]"] = *c.PatientName
	}
	if facts.RequestedService != nil {
		values["[SERVICE]"] = *facts.RequestedService
	}
	return values
}

// substitutePlaceholders performs literal token replacement. Unresolved
// placeholders are left verbatim, never silently dropped.
func substitutePlaceholders(letter string, values map[string]string) string {
	for token, value := range values {
		letter = strings.ReplaceAll(letter, token, value)
	}
	return letter
}

// attachmentsFromAnalysis derives one attachment suggestion per Missing
// or Unclear checklist item, preserving checklist order.
func attachmentsFromAnalysis(analysis *models.DenialAnalysis) []string {
	if analysis == nil {
		return []string{}
	}
	attachments := make([]string, 0, len(analysis.Checklist))
	for _, item := range analysis.Checklist {
		if item.Status == models.ChecklistMissing || item.Status == models.ChecklistUnclear {
			attachments = append(attachments, item.Item)
		}
	}
	return attachments
}

// citationsInOrder lists the citation tokens appearing in the letter in
// order of first appearance.
func citationsInOrder(letter string) []string {
	seen := make(map[string]bool)
	var citations []string
	for _, c := range citationPattern.FindAllString(letter, -1) {
		if !seen[c] {
			seen[c] = true
			citations = append(citations, c)
		}
	}
	if citations == nil {
		citations = []string{}
	}
	return citations
}
