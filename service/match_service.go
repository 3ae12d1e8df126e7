package service

import (
	"context"
	"fmt"
	"strings"

	"authpilot-backend/index"
	"authpilot-backend/models"

	"go.uber.org/zap"
)

// PolicySearcher is the retrieval surface of the policy vector index.
type PolicySearcher interface {
	Query(ctx context.Context, queryText string, k int, f index.Filters) ([]models.PolicyMatch, error)
}

// maxQueryReasons caps how many denial reasons feed the retrieval query.
const maxQueryReasons = 3

// MatchService turns extracted facts into a retrieval query and runs it
// against the policy vector index. Matches are fully recomputed on every
// run; previous matches are discarded, never merged.
type MatchService struct {
	searcher PolicySearcher
	topK     int
	logger   *zap.Logger
}

// NewMatchService creates a policy matching service.
func NewMatchService(searcher PolicySearcher, topK int, logger *zap.Logger) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{searcher: searcher, topK: topK, logger: logger}
}

// Match queries the index filtered to the case's payer and state. A
// filtered query with zero hits triggers a named unfiltered fallback so
// callers can tell "payer has no indexed policy" from "no semantic match".
func (s *MatchService) Match(ctx context.Context, facts *models.ExtractedFacts, c *models.Case) ([]models.PolicyMatch, error) {
	query := buildRetrievalQuery(facts, c)

	matches, err := s.searcher.Query(ctx, query, s.topK, index.Filters{Payer: c.Payer, State: c.State})
	if err != nil {
		return nil, fmt.Errorf("filtered policy query: %w", err)
	}

	if len(matches) == 0 && (c.Payer != "" || c.State != "") {
		s.logger.Info("filtered policy query empty, falling back to unfiltered query",
			zap.String("case_id", c.ID.String()),
			zap.String("payer", c.Payer),
			zap.String("state", c.State))

		matches, err = s.searcher.Query(ctx, query, s.topK, index.Filters{})
		if err != nil {
			return nil, fmt.Errorf("unfiltered policy query: %w", err)
		}
	}

	return matches, nil
}

// buildRetrievalQuery concatenates the requested service, denial reason
// category, leading denial reasons and CPT codes into one query string.
func buildRetrievalQuery(facts *models.ExtractedFacts, c *models.Case) string {
	var parts []string

	if facts.RequestedService != nil {
		parts = append(parts, *facts.RequestedService)
	}
	if facts.DenialReasonCategory != nil {
		parts = append(parts, strings.ReplaceAll(*facts.DenialReasonCategory, "_", " "))
	}
	reasons := facts.DenialReasons
	if len(reasons) > maxQueryReasons {
		reasons = reasons[:maxQueryReasons]
	}
	parts = append(parts, reasons...)
	parts = append(parts, c.CPTCodes...)

	if len(parts) == 0 {
		return fmt.Sprintf("%s coverage criteria", c.Payer)
	}
	return strings.Join(parts, " ")
}
