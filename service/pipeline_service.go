package service

import (
	"context"
	"fmt"
	"sync"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PipelineService orchestrates the case-processing stages. Each stage is
// independently callable and idempotent: re-running a stage overwrites
// its output field, never appends. Stages of the same case are serialized
// through a per-case mutex; cases never block each other.
type PipelineService struct {
	cases     CaseStore
	documents DocumentStore
	templates TemplateStore

	facts    *FactService
	matcher  *MatchService
	analyzer *AnalysisService
	drafts   *DraftService

	cfg    Config
	logger *zap.Logger

	caseLocks sync.Map // uuid.UUID -> *sync.Mutex
}

// PipelineServiceOption is a functional option for PipelineService
type PipelineServiceOption func(*PipelineService)

// WithCaseStore sets the case store
func WithCaseStore(s CaseStore) PipelineServiceOption {
	return func(p *PipelineService) { p.cases = s }
}

// WithDocumentStore sets the document store
func WithDocumentStore(s DocumentStore) PipelineServiceOption {
	return func(p *PipelineService) { p.documents = s }
}

// WithTemplateStore sets the template store
func WithTemplateStore(s TemplateStore) PipelineServiceOption {
	return func(p *PipelineService) { p.templates = s }
}

// WithFactService sets the fact extraction service
func WithFactService(s *FactService) PipelineServiceOption {
	return func(p *PipelineService) { p.facts = s }
}

// WithMatchService sets the policy matching service
func WithMatchService(s *MatchService) PipelineServiceOption {
	return func(p *PipelineService) { p.matcher = s }
}

// WithAnalysisService sets the denial analysis service
func WithAnalysisService(s *AnalysisService) PipelineServiceOption {
	return func(p *PipelineService) { p.analyzer = s }
}

// WithDraftService sets the draft generation service
func WithDraftService(s *DraftService) PipelineServiceOption {
	return func(p *PipelineService) { p.drafts = s }
}

// WithConfig sets the pipeline configuration
func WithConfig(cfg Config) PipelineServiceOption {
	return func(p *PipelineService) { p.cfg = cfg }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) PipelineServiceOption {
	return func(p *PipelineService) { p.logger = logger }
}

// NewPipelineService creates a new pipeline orchestrator
func NewPipelineService(opts ...PipelineServiceOption) *PipelineService {
	p := &PipelineService{cfg: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// lockCase serializes stage execution for one case. Unrelated cases use
// distinct mutexes and proceed in parallel.
func (p *PipelineService) lockCase(id uuid.UUID) func() {
	mu, _ := p.caseLocks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// ExtractFacts runs the fact extraction stage. Requires at least one
// uploaded document with extracted text; on failure the case's prior
// extracted_facts is left untouched.
func (p *PipelineService) ExtractFacts(ctx context.Context, caseID uuid.UUID) (*models.ExtractedFacts, error) {
	defer p.lockCase(caseID)()

	c, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, ErrCaseNotFound
	}

	docs, err := p.documents.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents uploaded", ErrInputMissing)
	}

	facts, err := p.facts.Extract(ctx, docs)
	if err != nil {
		return nil, err
	}

	if err := p.cases.SetExtractedFacts(ctx, caseID, facts); err != nil {
		return nil, fmt.Errorf("store extracted facts: %w", err)
	}

	p.logger.Info("facts extracted", zap.String("case_id", c.ID.String()))
	return facts, nil
}

// MatchPolicies runs the policy matching stage. Requires extracted facts.
// An empty match list is a valid result and still overwrites the previous
// matches.
func (p *PipelineService) MatchPolicies(ctx context.Context, caseID uuid.UUID) ([]models.PolicyMatch, error) {
	defer p.lockCase(caseID)()

	c, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, ErrCaseNotFound
	}
	if c.ExtractedFacts == nil {
		return nil, fmt.Errorf("%w: extracted facts required for matching", ErrInputMissing)
	}

	matches, err := p.matcher.Match(ctx, c.ExtractedFacts, c)
	if err != nil {
		return nil, err
	}

	if err := p.cases.SetPolicyMatches(ctx, caseID, matches); err != nil {
		return nil, fmt.Errorf("store policy matches: %w", err)
	}

	p.logger.Info("policies matched",
		zap.String("case_id", caseID.String()),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// AnalyzeDenial runs the denial analysis stage. Requires extracted facts;
// policy matches are used when present.
func (p *PipelineService) AnalyzeDenial(ctx context.Context, caseID uuid.UUID) (*models.DenialAnalysis, error) {
	defer p.lockCase(caseID)()

	c, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, ErrCaseNotFound
	}
	if c.ExtractedFacts == nil {
		return nil, fmt.Errorf("%w: extracted facts required for analysis", ErrInputMissing)
	}

	analysis, err := p.analyzer.Analyze(ctx, c.ExtractedFacts, c.PolicyMatches)
	if err != nil {
		return nil, err
	}

	if err := p.cases.SetDenialAnalysis(ctx, caseID, analysis); err != nil {
		return nil, fmt.Errorf("store denial analysis: %w", err)
	}

	p.logger.Info("denial analyzed",
		zap.String("case_id", caseID.String()),
		zap.String("category", string(analysis.DenialCategory)))
	return analysis, nil
}

// GenerateDraft runs the draft generation stage. Requires extracted
// facts; policy matches are recommended but not required — without them
// the draft comes back reviewable:false. On the first successful
// generation a new_denial case advances to draft_appeal; no other status
// transition is ever pipeline-driven.
func (p *PipelineService) GenerateDraft(ctx context.Context, caseID uuid.UUID, templateID *uuid.UUID) (*models.GeneratedDraft, error) {
	return p.generate(ctx, caseID, templateID, p.cfg.GenerateTemperature)
}

// RegenerateDraft re-runs generation with the same inputs. The generator
// is invoked fresh — nothing is memoized — so the letter may differ while
// the reviewability rule stays identical.
func (p *PipelineService) RegenerateDraft(ctx context.Context, caseID uuid.UUID, templateID *uuid.UUID) (*models.GeneratedDraft, error) {
	return p.generate(ctx, caseID, templateID, p.cfg.RegenerateTemperature)
}

func (p *PipelineService) generate(ctx context.Context, caseID uuid.UUID, templateID *uuid.UUID, temperature float32) (*models.GeneratedDraft, error) {
	defer p.lockCase(caseID)()

	c, err := p.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, ErrCaseNotFound
	}
	if c.ExtractedFacts == nil {
		return nil, fmt.Errorf("%w: extracted facts required for generation", ErrInputMissing)
	}

	var tmpl *models.Template
	if templateID != nil {
		tmpl, err = p.templates.GetByID(ctx, *templateID)
		if err != nil {
			return nil, ErrTemplateNotFound
		}
	}

	draft, err := p.drafts.Generate(ctx, c, c.ExtractedFacts, c.PolicyMatches, c.DenialAnalysis, tmpl, temperature)
	if err != nil {
		return nil, err
	}

	var advance *models.CaseStatus
	if c.Status == models.StatusNewDenial {
		s := models.StatusDraftAppeal
		advance = &s
	}

	if err := p.cases.SetGeneratedDraft(ctx, caseID, draft, advance); err != nil {
		return nil, fmt.Errorf("store generated draft: %w", err)
	}

	p.logger.Info("draft generated",
		zap.String("case_id", caseID.String()),
		zap.Bool("reviewable", draft.Reviewable))
	return draft, nil
}

// RunAll executes extract → match → analyze → generate in sequence,
// short-circuiting on the first stage failure and leaving later fields
// untouched.
func (p *PipelineService) RunAll(ctx context.Context, caseID uuid.UUID, templateID *uuid.UUID) (*models.Case, error) {
	if _, err := p.ExtractFacts(ctx, caseID); err != nil {
		return nil, fmt.Errorf("extract stage: %w", err)
	}
	if _, err := p.MatchPolicies(ctx, caseID); err != nil {
		return nil, fmt.Errorf("match stage: %w", err)
	}
	if _, err := p.AnalyzeDenial(ctx, caseID); err != nil {
		return nil, fmt.Errorf("analyze stage: %w", err)
	}
	if _, err := p.GenerateDraft(ctx, caseID, templateID); err != nil {
		return nil, fmt.Errorf("generate stage: %w", err)
	}
	return p.cases.GetByID(ctx, caseID)
}
