package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"authpilot-backend/models"
)

func TestAnalyzeRequiresFacts(t *testing.T) {
	t.Parallel()

	s := NewAnalysisService(&fakeGenerator{}, nil)
	if _, err := s.Analyze(context.Background(), nil, nil); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
}

func TestAnalyzeCategoryFromFacts(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{`[]`}}
	s := NewAnalysisService(gen, nil)

	facts := &models.ExtractedFacts{
		DenialReasonCategory: strPtr("missing_documentation"),
		DenialReasons:        []string{"chart notes absent"},
	}
	analysis, err := s.Analyze(context.Background(), facts, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.DenialCategory != models.CategoryDocumentationMissing {
		t.Errorf("alias category not normalized: %q", analysis.DenialCategory)
	}
	if len(analysis.DenialReasons) != 1 {
		t.Errorf("denial reasons not carried over")
	}
}

func TestAnalyzeCategoryDefaultsToOther(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{`[]`}}
	s := NewAnalysisService(gen, nil)

	analysis, err := s.Analyze(context.Background(), &models.ExtractedFacts{}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.DenialCategory != models.CategoryOther {
		t.Errorf("missing category should default to other, got %q", analysis.DenialCategory)
	}
}

func TestAnalyzeKeepsOnlyGroundedCitations(t *testing.T) {
	t.Parallel()

	match := testMatch("BCBS - CA Policy", "Documentation Requirements", 1, 0.8)
	real := match.Citation()
	fabricated := "[CITATION: Invented Policy | 2020-01-01 | Nowhere/Page 9 | deadbeef]"

	gen := &fakeGenerator{responses: []string{fmt.Sprintf(`[
		{"item": "Clinical notes", "status": "Missing", "required_by_policy_citation": %q},
		{"item": "Peer review letter", "status": "Missing", "required_by_policy_citation": %q},
		{"item": "X-ray report", "status": "Present"}
	]`, real, fabricated)}}
	s := NewAnalysisService(gen, nil)

	analysis, err := s.Analyze(context.Background(), &models.ExtractedFacts{}, []models.PolicyMatch{match})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.Checklist) != 3 {
		t.Fatalf("expected 3 checklist items, got %d", len(analysis.Checklist))
	}
	if analysis.Checklist[0].Citation != real {
		t.Errorf("grounded citation should be kept")
	}
	if analysis.Checklist[1].Citation != "" {
		t.Errorf("fabricated citation should be stripped, got %q", analysis.Checklist[1].Citation)
	}
}

func TestAnalyzeNormalizesChecklistStatus(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{`[
		{"item": "A", "status": "Present"},
		{"item": "B", "status": "Unknown"},
		{"item": "C", "status": "partially present"}
	]`}}
	s := NewAnalysisService(gen, nil)

	analysis, err := s.Analyze(context.Background(), &models.ExtractedFacts{}, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Checklist[0].Status != models.ChecklistPresent {
		t.Errorf("valid status rewritten")
	}
	if analysis.Checklist[1].Status != models.ChecklistUnclear {
		t.Errorf("Unknown should map to Unclear, got %q", analysis.Checklist[1].Status)
	}
	if analysis.Checklist[2].Status != models.ChecklistUnclear {
		t.Errorf("invalid status should map to Unclear, got %q", analysis.Checklist[2].Status)
	}
}

func TestAnalyzePromptIncludesCitations(t *testing.T) {
	t.Parallel()

	match := testMatch("Aetna - NY Policy", "Documentation Standards", 2, 0.7)
	gen := &fakeGenerator{responses: []string{`[]`}}
	s := NewAnalysisService(gen, nil)

	if _, err := s.Analyze(context.Background(), &models.ExtractedFacts{}, []models.PolicyMatch{match}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !strings.Contains(gen.lastPrompt, match.Citation()) {
		t.Errorf("prompt must carry the exact citation string for grounding")
	}
}

func TestAnalyzeMalformedChecklist(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []string{`[{"status": "Missing"}]`}}
	s := NewAnalysisService(gen, nil)

	_, err := s.Analyze(context.Background(), &models.ExtractedFacts{}, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("checklist item without required field should fail, got %v", err)
	}
}
