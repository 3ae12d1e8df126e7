package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"authpilot-backend/models"

	"go.uber.org/zap"
)

const factSystemPrompt = `You are an administrative assistant for healthcare prior authorization and appeals. You do not provide medical advice. Extract structured data from the following documents for an insurance appeal case.

Hard rules:
- If information is missing, ask for it or list it as "Missing".
- Do not invent clinical facts, codes, dates, or policy criteria.
- Only use facts explicitly found in the documents.

Return ONLY valid JSON with no markdown formatting.`

const (
	denialTextLimit   = 8000
	clinicalTextLimit = 4000
	imagingTextLimit  = 4000

	factTemperature = 0.1
)

// FactService prompts the language model with case document text and a
// fixed output schema, then coerces the response into ExtractedFacts.
type FactService struct {
	generator TextGenerator
	logger    *zap.Logger
}

// NewFactService creates a fact extraction service.
func NewFactService(generator TextGenerator, logger *zap.Logger) *FactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FactService{generator: generator, logger: logger}
}

// Extract builds one prompt from all available document text and parses
// the model response field by field. A field absent or malformed in the
// response becomes null/empty; only a missing denial letter, an
// unreachable model, or a response with no JSON object at all fails the
// stage.
func (s *FactService) Extract(ctx context.Context, docs []*models.Document) (*models.ExtractedFacts, error) {
	var denialText, clinicalText, imagingText string
	for _, doc := range docs {
		switch doc.Type {
		case models.DocumentDenialLetter:
			denialText = doc.ExtractedText
		case models.DocumentClinicalNotes:
			clinicalText = doc.ExtractedText
		case models.DocumentImagingReport:
			imagingText = doc.ExtractedText
		}
	}

	if strings.TrimSpace(denialText) == "" {
		return nil, fmt.Errorf("%w: denial letter required for extraction", ErrInputMissing)
	}

	prompt := buildFactPrompt(denialText, clinicalText, imagingText)

	response, err := s.generator.Generate(ctx, factSystemPrompt, prompt, factTemperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	blob, err := extractJSONBlock(response, '{', '}')
	if err != nil {
		s.logger.Warn("fact extraction response had no JSON object",
			zap.String("response_prefix", truncate(response, 200)))
		return nil, err
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return coerceFacts(raw), nil
}

func buildFactPrompt(denialText, clinicalText, imagingText string) string {
	clinical := "Not provided"
	if clinicalText != "" {
		clinical = truncate(clinicalText, clinicalTextLimit)
	}
	imaging := "Not provided"
	if imagingText != "" {
		imaging = truncate(imagingText, imagingTextLimit)
	}

	return fmt.Sprintf(`Extract structured data from these documents.

Return JSON with:
- payer_name
- denial_reasons: [list]
- denial_reason_category: (documentation_missing | medical_necessity | coding_billing | authorization_issue | eligibility | untimely_filing | experimental | other)
- requested_service (plain English)
- cpt_hcpcs_codes: [list]
- icd10_codes: [list]
- patient_age (if present)
- key_clinical_facts: [bullet list of facts explicitly stated]
- dates: {date_of_service, denial_date, submission_date if present}
- missing_information: [list of fields needed to proceed]

Only use facts explicitly found in the documents. If not present, set null and add to missing_information.

DENIAL LETTER:
%s

CLINICAL NOTES:
%s

IMAGING REPORT:
%s`, truncate(denialText, denialTextLimit), clinical, imaging)
}

// coerceFacts converts the untyped model response into ExtractedFacts.
// Wrong-typed fields are dropped, not treated as errors, so a partially
// populated fact set still counts as success.
func coerceFacts(raw map[string]interface{}) *models.ExtractedFacts {
	facts := &models.ExtractedFacts{
		DenialReasons:      stringList(raw["denial_reasons"]),
		CPTHCPCSCodes:      stringList(raw["cpt_hcpcs_codes"]),
		ICD10Codes:         stringList(raw["icd10_codes"]),
		KeyClinicalFacts:   stringList(raw["key_clinical_facts"]),
		MissingInformation: stringList(raw["missing_information"]),
	}

	facts.PayerName = stringField(raw["payer_name"])
	facts.RequestedService = stringField(raw["requested_service"])
	facts.DenialReasonCategory = stringField(raw["denial_reason_category"])
	facts.PatientAge = intField(raw["patient_age"])

	if dates, ok := raw["dates"].(map[string]interface{}); ok {
		facts.Dates = models.FactDates{
			DateOfService:  stringField(dates["date_of_service"]),
			DenialDate:     stringField(dates["denial_date"]),
			SubmissionDate: stringField(dates["submission_date"]),
		}
	}

	return facts
}

func stringField(v interface{}) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intField(v interface{}) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return &i
		}
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
