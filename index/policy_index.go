package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"authpilot-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Embedder computes fixed-dimension embedding vectors. The same
// implementation must be used at index time and at query time.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Filters narrows a query to excerpts whose payer/state contain the given
// values (case-insensitive). Empty fields match everything.
type Filters struct {
	Payer string
	State string
}

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyQuery        = errors.New("query text is empty")
)

// embedConcurrency bounds parallel embedding calls during indexing.
const embedConcurrency = 4

type entry struct {
	excerpt models.PolicyExcerpt
	vec     []float32
	seq     uint64
}

// PolicyIndex is an in-memory nearest-neighbor index over policy excerpts.
// Mutations take the write lock so readers never observe a torn excerpt
// set; queries for unrelated cases proceed concurrently under the read lock.
type PolicyIndex struct {
	mu      sync.RWMutex
	entries []entry
	dim     int
	seq     uint64

	embed  Embedder
	logger *zap.Logger
}

// New creates an empty policy index backed by the given embedder.
func New(embed Embedder, logger *zap.Logger) *PolicyIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyIndex{
		embed:  embed,
		logger: logger,
	}
}

// IndexPolicy indexes the excerpts of one policy. Excerpts that already
// carry an embedding (e.g. rehydrated from the database at startup) are
// inserted as-is; the rest are embedded first and the computed vectors
// are written back onto the given excerpts so the caller can persist
// them. Re-indexing a policy replaces its previous excerpts atomically
// and leaves every other policy's entries untouched.
func (ix *PolicyIndex) IndexPolicy(ctx context.Context, policyID uuid.UUID, excerpts []models.PolicyExcerpt) error {
	vecs := make([][]float32, len(excerpts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i := range excerpts {
		i := i
		if len(excerpts[i].Embedding) > 0 {
			vecs[i] = excerpts[i].Embedding
			continue
		}
		g.Go(func() error {
			vec, err := ix.embed.EmbedDocument(gctx, excerpts[i].Text)
			if err != nil {
				return fmt.Errorf("embed excerpt %s: %w", excerpts[i].ID, err)
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i := range vecs {
		if ix.dim == 0 {
			ix.dim = len(vecs[i])
		}
		if len(vecs[i]) != ix.dim {
			return fmt.Errorf("%w: index has %d, excerpt %s has %d",
				ErrDimensionMismatch, ix.dim, excerpts[i].ID, len(vecs[i]))
		}
	}

	ix.removeLocked(policyID)
	for i := range excerpts {
		ix.seq++
		excerpts[i].Embedding = vecs[i]
		ix.entries = append(ix.entries, entry{excerpt: excerpts[i], vec: vecs[i], seq: ix.seq})
	}

	ix.logger.Info("indexed policy",
		zap.String("policy_id", policyID.String()),
		zap.Int("excerpts", len(excerpts)))
	return nil
}

// Remove drops every excerpt of the policy. A query already holding the
// read lock completes against the old entry set; later queries never see
// the removed excerpts.
func (ix *PolicyIndex) Remove(policyID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(policyID)
}

func (ix *PolicyIndex) removeLocked(policyID uuid.UUID) {
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		if e.excerpt.PolicyID != policyID {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(ix.entries); i++ {
		ix.entries[i] = entry{}
	}
	ix.entries = kept
}

// Query embeds queryText and returns the top-k excerpts by cosine
// similarity, optionally pre-filtered by payer/state. Scores are clamped
// into [0,1] and never re-scaled across the result set; ties are broken by
// earliest insertion. An index holding no matching excerpts yields an
// empty result, not an error.
func (ix *PolicyIndex) Query(ctx context.Context, queryText string, k int, f Filters) ([]models.PolicyMatch, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, nil
	}
	if ix.Size() == 0 {
		return nil, nil
	}

	qvec, err := ix.embed.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.dim != 0 && len(qvec) != ix.dim {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimensionMismatch, ix.dim, len(qvec))
	}

	type scored struct {
		e     entry
		score float64
	}
	var candidates []scored
	for _, e := range ix.entries {
		if !matchesFilter(e.excerpt, f) {
			continue
		}
		score := cosineSimilarity(qvec, e.vec)
		if score < 0 {
			score = 0
		}
		candidates = append(candidates, scored{e: e, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].e.seq < candidates[j].e.seq
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	matches := make([]models.PolicyMatch, 0, len(candidates))
	for _, c := range candidates {
		ex := c.e.excerpt
		matches = append(matches, models.PolicyMatch{
			PolicyID:      ex.PolicyID,
			PolicyName:    ex.PolicyName,
			EffectiveDate: ex.EffectiveDate,
			Section:       ex.Section,
			Page:          ex.Page,
			ExcerptID:     ex.ID,
			Text:          ex.Text,
			Score:         c.score,
		})
	}
	return matches, nil
}

// Size returns the number of indexed excerpts across all policies.
func (ix *PolicyIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func matchesFilter(ex models.PolicyExcerpt, f Filters) bool {
	if f.Payer != "" && !strings.Contains(strings.ToLower(ex.Payer), strings.ToLower(f.Payer)) {
		return false
	}
	if f.State != "" && !strings.Contains(strings.ToLower(ex.State), strings.ToLower(f.State)) {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
