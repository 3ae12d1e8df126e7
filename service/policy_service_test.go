package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"authpilot-backend/index"
	"authpilot-backend/models"

	"github.com/google/uuid"
)

// constEmbedder embeds everything to the same unit vector.
type constEmbedder struct{}

func (constEmbedder) EmbedDocument(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (constEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

// memPolicyStore is an in-memory PolicyStore.
type memPolicyStore struct {
	policies map[uuid.UUID]*models.Policy
	excerpts map[uuid.UUID][]models.PolicyExcerpt
}

func newMemPolicyStore() *memPolicyStore {
	return &memPolicyStore{
		policies: map[uuid.UUID]*models.Policy{},
		excerpts: map[uuid.UUID][]models.PolicyExcerpt{},
	}
}

func (s *memPolicyStore) Create(_ context.Context, p *models.Policy) error {
	s.policies[p.ID] = p
	return nil
}

func (s *memPolicyStore) GetByID(_ context.Context, id uuid.UUID) (*models.Policy, error) {
	p, ok := s.policies[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return p, nil
}

func (s *memPolicyStore) List(_ context.Context) ([]*models.Policy, error) {
	var out []*models.Policy
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out, nil
}

func (s *memPolicyStore) Update(_ context.Context, p *models.Policy) error {
	s.policies[p.ID] = p
	return nil
}

func (s *memPolicyStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.policies, id)
	delete(s.excerpts, id)
	return nil
}

func (s *memPolicyStore) ReplaceExcerpts(_ context.Context, policyID uuid.UUID, excerpts []models.PolicyExcerpt) error {
	s.excerpts[policyID] = excerpts
	return nil
}

func (s *memPolicyStore) ListAllExcerpts(_ context.Context) ([]models.PolicyExcerpt, error) {
	var out []models.PolicyExcerpt
	for _, exs := range s.excerpts {
		out = append(out, exs...)
	}
	return out, nil
}

func testPolicy(content string) *models.Policy {
	return &models.Policy{
		ID:            uuid.New(),
		Payer:         "Blue Cross Blue Shield",
		State:         "CA",
		Category:      "Medical Policy",
		Name:          "BCBS - CA Policy",
		EffectiveDate: "2024-01-01",
		Content:       content,
	}
}

func TestChunkPolicySectionsAndOrdinals(t *testing.T) {
	t.Parallel()

	long1 := strings.Repeat("Coverage is approved when conservative treatment has failed. ", 2)
	long2 := strings.Repeat("All requests must include clinical notes supporting necessity. ", 2)
	p := testPolicy("Section 1: Coverage Criteria\n\n" + long1 + "\n\nSection 2: Documentation\n\n" + long2)

	excerpts := ChunkPolicy(p)
	if len(excerpts) != 2 {
		t.Fatalf("expected 2 excerpts, got %d", len(excerpts))
	}
	if excerpts[0].Section != "Section 1: Coverage Criteria" {
		t.Errorf("section[0] = %q", excerpts[0].Section)
	}
	if excerpts[1].Section != "Section 2: Documentation" {
		t.Errorf("section[1] = %q", excerpts[1].Section)
	}
	if excerpts[0].Ordinal != 0 || excerpts[1].Ordinal != 1 {
		t.Errorf("ordinals not sequential: %d %d", excerpts[0].Ordinal, excerpts[1].Ordinal)
	}
	for _, ex := range excerpts {
		if ex.Payer != p.Payer || ex.PolicyName != p.Name || ex.EffectiveDate != p.EffectiveDate {
			t.Errorf("excerpt missing denormalized policy metadata: %+v", ex)
		}
	}
}

func TestChunkPolicyStableIDs(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Coverage criteria text for chunking purposes here. ", 2)
	p := testPolicy("Header\n\n" + long)

	first := ChunkPolicy(p)
	second := ChunkPolicy(p)
	if first[0].ID != second[0].ID {
		t.Error("re-chunking identical content must yield identical excerpt IDs")
	}
	if first[0].ID != models.ExcerptID(p.ID, 0) {
		t.Error("excerpt ID must derive from policy ID and ordinal")
	}
}

func TestChunkPolicyPageAdvancesEveryTenParagraphs(t *testing.T) {
	t.Parallel()

	para := strings.Repeat("Paragraph body text long enough to be an excerpt. ", 2)
	parts := make([]string, 25)
	for i := range parts {
		parts[i] = para
	}
	p := testPolicy(strings.Join(parts, "\n\n"))

	excerpts := ChunkPolicy(p)
	if len(excerpts) != 25 {
		t.Fatalf("expected 25 excerpts, got %d", len(excerpts))
	}
	if excerpts[0].Page != 1 {
		t.Errorf("first page = %d, want 1", excerpts[0].Page)
	}
	if excerpts[9].Page != 1 || excerpts[10].Page != 2 {
		t.Errorf("page should advance at paragraph 10: got %d then %d", excerpts[9].Page, excerpts[10].Page)
	}
	if excerpts[24].Page != 3 {
		t.Errorf("paragraph 24 page = %d, want 3", excerpts[24].Page)
	}
}

func TestChunkPolicyCapsTextAndSectionLengths(t *testing.T) {
	t.Parallel()

	p := testPolicy(strings.Repeat("x", 5000))
	excerpts := ChunkPolicy(p)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 excerpt, got %d", len(excerpts))
	}
	if len(excerpts[0].Text) != chunkTextLimit {
		t.Errorf("text length = %d, want %d", len(excerpts[0].Text), chunkTextLimit)
	}
}

func TestChunkPolicySkipsBlankParagraphs(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Real content paragraph that is long enough to index. ", 2)
	p := testPolicy("\n\n   \n\n" + long + "\n\n\n\n")
	excerpts := ChunkPolicy(p)
	if len(excerpts) != 1 {
		t.Fatalf("expected 1 excerpt, got %d", len(excerpts))
	}
	if excerpts[0].Section != "General" {
		t.Errorf("default section = %q", excerpts[0].Section)
	}
}

func TestPolicyServiceCreateIndexesAndPersists(t *testing.T) {
	t.Parallel()

	store := newMemPolicyStore()
	ix := index.New(constEmbedder{}, nil)
	svc := NewPolicyService(store, ix, nil)

	long := strings.Repeat("Coverage criteria for advanced imaging requests. ", 2)
	p := testPolicy("Section 1: Criteria\n\n" + long)

	created, err := svc.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ix.Size() != 1 {
		t.Fatalf("index size = %d, want 1", ix.Size())
	}

	persisted := store.excerpts[created.ID]
	if len(persisted) != 1 {
		t.Fatalf("persisted excerpts = %d, want 1", len(persisted))
	}
	if len(persisted[0].Embedding) == 0 {
		t.Error("persisted excerpt must carry its embedding for startup rebuild")
	}
}

func TestPolicyServiceCreateRejectsEmptyContent(t *testing.T) {
	t.Parallel()

	svc := NewPolicyService(newMemPolicyStore(), index.New(constEmbedder{}, nil), nil)
	p := testPolicy("   ")
	if _, err := svc.Create(context.Background(), p); !errors.Is(err, ErrInputMissing) {
		t.Fatalf("expected ErrInputMissing, got %v", err)
	}
}

func TestPolicyServiceDeleteRemovesFromIndex(t *testing.T) {
	t.Parallel()

	store := newMemPolicyStore()
	ix := index.New(constEmbedder{}, nil)
	svc := NewPolicyService(store, ix, nil)

	long := strings.Repeat("Durable medical equipment coverage guidelines. ", 2)
	p := testPolicy("Header\n\n" + long)
	if _, err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ix.Size() != 0 {
		t.Errorf("index size = %d after delete, want 0", ix.Size())
	}
	if _, err := store.GetByID(context.Background(), p.ID); err == nil {
		t.Error("policy still present in store after delete")
	}
}

func TestPolicyServiceRebuildUsesStoredEmbeddings(t *testing.T) {
	t.Parallel()

	store := newMemPolicyStore()
	policyID := uuid.New()
	store.policies[policyID] = testPolicy("unused")
	store.excerpts[policyID] = []models.PolicyExcerpt{
		{
			ID:        models.ExcerptID(policyID, 0),
			PolicyID:  policyID,
			Text:      "stored excerpt",
			Ordinal:   0,
			Embedding: []float32{0, 1},
		},
	}

	// An index whose embedder always fails: rebuild must not embed.
	ix := index.New(failEmbedder{}, nil)
	svc := NewPolicyService(store, ix, nil)

	if err := svc.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if ix.Size() != 1 {
		t.Errorf("index size = %d after rebuild, want 1", ix.Size())
	}
}

type failEmbedder struct{}

func (failEmbedder) EmbedDocument(context.Context, string) ([]float32, error) {
	return nil, errors.New("must not be called")
}

func (failEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("must not be called")
}
