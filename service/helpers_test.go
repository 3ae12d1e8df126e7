package service

import (
	"context"
	"errors"
	"sync"

	"authpilot-backend/index"
	"authpilot-backend/models"

	"github.com/google/uuid"
)

// fakeGenerator replays canned responses and records every invocation.
type fakeGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error

	calls        int
	lastSystem   string
	lastPrompt   string
	lastTemp     float32
	promptLog    []string
	temperatures []float32
}

func (f *fakeGenerator) Generate(_ context.Context, system, prompt string, temperature float32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSystem = system
	f.lastPrompt = prompt
	f.lastTemp = temperature
	f.promptLog = append(f.promptLog, prompt)
	f.temperatures = append(f.temperatures, temperature)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("fakeGenerator: no responses left")
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// fakeSearcher returns canned matches and records the filters used.
type fakeSearcher struct {
	matches    []models.PolicyMatch
	unfiltered []models.PolicyMatch
	err        error

	queries []string
	filters []index.Filters
}

func (f *fakeSearcher) Query(_ context.Context, queryText string, k int, filt index.Filters) ([]models.PolicyMatch, error) {
	f.queries = append(f.queries, queryText)
	f.filters = append(f.filters, filt)
	if f.err != nil {
		return nil, f.err
	}
	if filt == (index.Filters{}) && f.unfiltered != nil {
		return f.unfiltered, nil
	}
	return f.matches, nil
}

// memCaseStore is an in-memory CaseStore for pipeline tests.
type memCaseStore struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*models.Case
}

func newMemCaseStore(cases ...*models.Case) *memCaseStore {
	s := &memCaseStore{cases: make(map[uuid.UUID]*models.Case)}
	for _, c := range cases {
		s.cases[c.ID] = c
	}
	return s
}

func (s *memCaseStore) GetByID(_ context.Context, id uuid.UUID) (*models.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	clone := *c
	return &clone, nil
}

func (s *memCaseStore) SetExtractedFacts(_ context.Context, id uuid.UUID, facts *models.ExtractedFacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[id].ExtractedFacts = facts
	return nil
}

func (s *memCaseStore) SetPolicyMatches(_ context.Context, id uuid.UUID, matches models.PolicyMatches) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[id].PolicyMatches = matches
	return nil
}

func (s *memCaseStore) SetDenialAnalysis(_ context.Context, id uuid.UUID, analysis *models.DenialAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[id].DenialAnalysis = analysis
	return nil
}

func (s *memCaseStore) SetGeneratedDraft(_ context.Context, id uuid.UUID, draft *models.GeneratedDraft, status *models.CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[id].GeneratedDraft = draft
	if status != nil {
		s.cases[id].Status = *status
	}
	return nil
}

// memDocumentStore is an in-memory DocumentStore.
type memDocumentStore struct {
	docs map[uuid.UUID][]*models.Document
}

func (s *memDocumentStore) ListByCase(_ context.Context, caseID uuid.UUID) ([]*models.Document, error) {
	return s.docs[caseID], nil
}

// memTemplateStore is an in-memory TemplateStore.
type memTemplateStore struct {
	templates map[uuid.UUID]*models.Template
}

func (s *memTemplateStore) GetByID(_ context.Context, id uuid.UUID) (*models.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return t, nil
}

func denialDoc(caseID uuid.UUID, text string) *models.Document {
	return &models.Document{
		ID:               uuid.New(),
		CaseID:           caseID,
		Type:             models.DocumentDenialLetter,
		Filename:         "denial.pdf",
		ExtractedText:    text,
		ExtractionStatus: models.ExtractionSuccess,
	}
}

func testMatch(name, section string, page int, score float64) models.PolicyMatch {
	return models.PolicyMatch{
		PolicyID:      uuid.New(),
		PolicyName:    name,
		EffectiveDate: "2024-01-01",
		Section:       section,
		Page:          page,
		ExcerptID:     uuid.New(),
		Text:          "Coverage is approved when conservative treatment has failed.",
		Score:         score,
	}
}
