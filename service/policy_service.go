package service

import (
	"context"
	"fmt"
	"strings"

	"authpilot-backend/index"
	"authpilot-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PolicyStore persists policies and their chunked excerpts.
type PolicyStore interface {
	Create(ctx context.Context, p *models.Policy) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)
	List(ctx context.Context) ([]*models.Policy, error)
	Update(ctx context.Context, p *models.Policy) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceExcerpts(ctx context.Context, policyID uuid.UUID, excerpts []models.PolicyExcerpt) error
	ListAllExcerpts(ctx context.Context) ([]models.PolicyExcerpt, error)
}

// Chunking parameters. Short paragraphs become section headers instead
// of chunks; page numbers are synthetic, advancing every pageParagraphs
// paragraphs of source text.
const (
	sectionHeaderMaxLen = 50
	sectionLabelLimit   = 100
	chunkTextLimit      = 2000
	pageParagraphs      = 10
	defaultSection      = "General"
)

// ChunkPolicy splits a policy's text into excerpts on blank lines. The
// ordinal-th excerpt of a policy always gets the same ID, so re-indexing
// unchanged text keeps every existing citation resolvable.
func ChunkPolicy(p *models.Policy) []models.PolicyExcerpt {
	paragraphs := strings.Split(p.Content, "\n\n")

	section := defaultSection
	page := 1
	ordinal := 0
	excerpts := make([]models.PolicyExcerpt, 0, len(paragraphs))

	for i, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if i > 0 && i%pageParagraphs == 0 {
			page++
		}

		if len(para) < sectionHeaderMaxLen {
			section = truncate(para, sectionLabelLimit)
			continue
		}

		excerpts = append(excerpts, models.PolicyExcerpt{
			ID:            models.ExcerptID(p.ID, ordinal),
			PolicyID:      p.ID,
			PolicyName:    p.Name,
			Payer:         p.Payer,
			State:         p.State,
			EffectiveDate: p.EffectiveDate,
			Section:       section,
			Page:          page,
			Text:          truncate(para, chunkTextLimit),
			Ordinal:       ordinal,
		})
		ordinal++
	}
	return excerpts
}

// PolicyService owns the policy corpus: CRUD against the store plus the
// chunk/embed/index lifecycle against the in-memory vector index.
type PolicyService struct {
	store  PolicyStore
	index  *index.PolicyIndex
	logger *zap.Logger
}

// NewPolicyService creates a policy service.
func NewPolicyService(store PolicyStore, ix *index.PolicyIndex, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{store: store, index: ix, logger: logger}
}

// Create persists the policy, then chunks, embeds and indexes its text.
// The computed embeddings are stored alongside the excerpts so restarts
// rebuild the index without re-embedding.
func (s *PolicyService) Create(ctx context.Context, p *models.Policy) (*models.Policy, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("%w: policy content is empty", ErrInputMissing)
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	if err := s.reindex(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Update persists the new policy fields and re-indexes. Excerpt IDs for
// unchanged ordinals stay the same; a shorter text simply yields fewer
// excerpts and the stale ones vanish from index and store together.
func (s *PolicyService) Update(ctx context.Context, p *models.Policy) (*models.Policy, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, fmt.Errorf("%w: policy content is empty", ErrInputMissing)
	}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	if err := s.reindex(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PolicyService) reindex(ctx context.Context, p *models.Policy) error {
	excerpts := ChunkPolicy(p)

	if err := s.index.IndexPolicy(ctx, p.ID, excerpts); err != nil {
		return fmt.Errorf("index policy: %w", err)
	}
	if err := s.store.ReplaceExcerpts(ctx, p.ID, excerpts); err != nil {
		return fmt.Errorf("persist excerpts: %w", err)
	}

	s.logger.Info("policy indexed",
		zap.String("policy_id", p.ID.String()),
		zap.String("name", p.Name),
		zap.Int("excerpts", len(excerpts)))
	return nil
}

// Get returns one policy by ID.
func (s *PolicyService) Get(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all policies.
func (s *PolicyService) List(ctx context.Context) ([]*models.Policy, error) {
	return s.store.List(ctx)
}

// Delete removes the policy from store and index. Citations already
// embedded in generated drafts keep their text but stop resolving.
func (s *PolicyService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	s.index.Remove(id)
	s.logger.Info("policy deleted", zap.String("policy_id", id.String()))
	return nil
}

// Rebuild loads every stored excerpt and repopulates the index from the
// persisted embeddings. Called once at startup; excerpts missing an
// embedding are re-embedded.
func (s *PolicyService) Rebuild(ctx context.Context) error {
	excerpts, err := s.store.ListAllExcerpts(ctx)
	if err != nil {
		return fmt.Errorf("load excerpts: %w", err)
	}

	byPolicy := make(map[uuid.UUID][]models.PolicyExcerpt)
	var order []uuid.UUID
	for _, ex := range excerpts {
		if _, seen := byPolicy[ex.PolicyID]; !seen {
			order = append(order, ex.PolicyID)
		}
		byPolicy[ex.PolicyID] = append(byPolicy[ex.PolicyID], ex)
	}

	for _, policyID := range order {
		if err := s.index.IndexPolicy(ctx, policyID, byPolicy[policyID]); err != nil {
			return fmt.Errorf("rebuild policy %s: %w", policyID, err)
		}
	}

	s.logger.Info("policy index rebuilt",
		zap.Int("policies", len(order)),
		zap.Int("excerpts", len(excerpts)))
	return nil
}
