package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"authpilot-backend/models"

	"github.com/google/uuid"
)

func draftResponse(letter string) string {
	blob, _ := json.Marshal(map[string]interface{}{"appeal_letter": letter})
	return string(blob)
}

func TestGenerateReviewableWithCitationAndStrongMatch(t *testing.T) {
	t.Parallel()

	match := testMatch("BCBS - CA Policy", "Medical Necessity Criteria", 2, 0.72)
	letter := "We appeal this denial. Per policy " + match.Citation() + " the service is covered."
	gen := &fakeGenerator{responses: []string{draftResponse(letter)}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New(), Payer: "BCBS", State: "CA"}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, []models.PolicyMatch{match}, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !draft.Reviewable {
		t.Errorf("expected reviewable draft, reason %q", draft.ReviewableReason)
	}
	if draft.ReviewableReason != "" {
		t.Errorf("reviewable draft must have empty reason, got %q", draft.ReviewableReason)
	}
	if len(draft.CitationsUsed) != 1 || draft.CitationsUsed[0] != match.Citation() {
		t.Errorf("citations_used = %v", draft.CitationsUsed)
	}
}

func TestGenerateNotReviewableWithoutMatches(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse("We could not find supporting policy language.")}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New(), Payer: "Acme Health"}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Reviewable {
		t.Error("draft without matches must not be reviewable")
	}
	if draft.ReviewableReason != ReasonNoPolicySupport {
		t.Errorf("reason = %q, want %q", draft.ReviewableReason, ReasonNoPolicySupport)
	}
}

func TestGenerateNotReviewableBelowThreshold(t *testing.T) {
	t.Parallel()

	match := testMatch("BCBS - CA Policy", "Criteria", 1, 0.2)
	letter := "Citing " + match.Citation() + " anyway."
	gen := &fakeGenerator{responses: []string{draftResponse(letter)}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New()}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, []models.PolicyMatch{match}, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Reviewable {
		t.Error("weak matches must not gate reviewable even with citations present")
	}
	if draft.ReviewableReason != ReasonBelowSimilarity {
		t.Errorf("reason = %q, want %q", draft.ReviewableReason, ReasonBelowSimilarity)
	}
}

func TestGenerateNotReviewableWithoutCitationInBody(t *testing.T) {
	t.Parallel()

	match := testMatch("BCBS - CA Policy", "Criteria", 1, 0.9)
	gen := &fakeGenerator{responses: []string{draftResponse("A letter with no citations at all.")}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New()}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, []models.PolicyMatch{match}, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.Reviewable {
		t.Error("letter without citation tokens must not be reviewable")
	}
	if draft.ReviewableReason != ReasonNoCitationsInBody {
		t.Errorf("reason = %q, want %q", draft.ReviewableReason, ReasonNoCitationsInBody)
	}
}

func TestGenerateSubstitutesKnownPlaceholders(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse(
		"Dear [PAYER]: regarding [SERVICE] due [DUE DATE] for [PATIENT NAME], codes [CPT CODES].",
	)}}
	s := NewDraftService(gen, 0.35, nil)

	patient := "John Smith"
	c := &models.Case{
		ID:          uuid.New(),
		Payer:       "Blue Cross Blue Shield",
		DueDate:     "2024-06-15",
		CPTCodes:    models.StringSlice{"72148", "70553"},
		PatientName: &patient,
	}
	facts := &models.ExtractedFacts{RequestedService: strPtr("Lumbar spine MRI")}
	draft, err := s.Generate(context.Background(), c, facts, nil, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{"Blue Cross Blue Shield", "Lumbar spine MRI", "2024-06-15", "John Smith", "72148, 70553"} {
		if !strings.Contains(draft.AppealLetter, want) {
			t.Errorf("letter missing substituted value %q: %s", want, draft.AppealLetter)
		}
	}
	if strings.Contains(draft.AppealLetter, "[PAYER]") {
		t.Errorf("known placeholder left unsubstituted")
	}
}

func TestGenerateLeavesUnknownPlaceholdersVerbatim(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse("Sincerely, [PATIENT NAME] ([STATE])")}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New(), Payer: "Aetna"}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(draft.AppealLetter, "[PATIENT NAME]") || !strings.Contains(draft.AppealLetter, "[STATE]") {
		t.Errorf("unknown placeholders must survive verbatim: %s", draft.AppealLetter)
	}
}

func TestGenerateAttachmentsFromChecklistOrder(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse("letter")}}
	s := NewDraftService(gen, 0.35, nil)

	analysis := &models.DenialAnalysis{Checklist: []models.ChecklistItem{
		{Item: "X-ray report", Status: models.ChecklistPresent},
		{Item: "PT completion note", Status: models.ChecklistMissing},
		{Item: "Surgeon attestation", Status: models.ChecklistUnclear},
		{Item: "Referral", Status: models.ChecklistPresent},
		{Item: "Prior imaging", Status: models.ChecklistMissing},
	}}

	c := &models.Case{ID: uuid.New()}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, analysis, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"PT completion note", "Surgeon attestation", "Prior imaging"}
	if len(draft.AttachmentsChecklist) != len(want) {
		t.Fatalf("attachments = %v, want %v", draft.AttachmentsChecklist, want)
	}
	for i := range want {
		if draft.AttachmentsChecklist[i] != want[i] {
			t.Errorf("attachments[%d] = %q, want %q", i, draft.AttachmentsChecklist[i], want[i])
		}
	}
}

func TestGenerateCitationsDedupedInFirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	m1 := testMatch("Policy A", "S1", 1, 0.8)
	m2 := testMatch("Policy B", "S2", 1, 0.8)
	letter := fmt.Sprintf("First %s then %s then again %s.", m2.Citation(), m1.Citation(), m2.Citation())
	gen := &fakeGenerator{responses: []string{draftResponse(letter)}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New()}
	draft, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, []models.PolicyMatch{m1, m2}, nil, nil, 0.3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(draft.CitationsUsed) != 2 {
		t.Fatalf("citations_used = %v", draft.CitationsUsed)
	}
	if draft.CitationsUsed[0] != m2.Citation() || draft.CitationsUsed[1] != m1.Citation() {
		t.Errorf("citations not in first-appearance order: %v", draft.CitationsUsed)
	}
}

func TestGenerateTemplateShapesPrompt(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse("letter")}}
	s := NewDraftService(gen, 0.35, nil)

	tmpl := &models.Template{
		Name:    "Urgent Appeal Letter",
		Type:    "appeal",
		Tone:    "urgent",
		Content: "URGENT APPEAL\n\nDear [PAYER]: ...",
	}
	c := &models.Case{ID: uuid.New()}
	if _, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, tmpl, 0.3); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, "URGENT APPEAL") {
		t.Errorf("template content missing from prompt")
	}
	if !strings.Contains(gen.lastPrompt, "tone: urgent") {
		t.Errorf("template tone missing from prompt")
	}
}

func TestGenerateMalformedResponse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{`{"wrong_field": true}`}}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New()}
	_, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, nil, 0.3)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("model down")}
	s := NewDraftService(gen, 0.35, nil)

	c := &models.Case{ID: uuid.New()}
	_, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, nil, 0.3)
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGeneratePromptMasksPatientName(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{draftResponse("letter")}}
	s := NewDraftService(gen, 0.35, nil)

	patient := "John Smith"
	c := &models.Case{ID: uuid.New(), PatientName: &patient}
	if _, err := s.Generate(context.Background(), c, &models.ExtractedFacts{}, nil, nil, nil, 0.3); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(gen.lastPrompt, "John Smith") {
		t.Errorf("patient name must not reach the model prompt")
	}
	if !strings.Contains(gen.lastPrompt, "[PATIENT NAME]") {
		t.Errorf("prompt should carry the patient name placeholder")
	}
}
