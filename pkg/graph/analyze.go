package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

// RelationshipReasoner proposes relationships between a product and a set
// of candidates. Its answers are untrusted and always normalized.
type RelationshipReasoner interface {
	ProposeRelationships(ctx context.Context, source common.Product, candidates []common.Product) ([]common.Judgment, error)
}

// Analyzer infers the relationships of single products and writes them to
// a Store.
//
// An Analyzer should be created using NewAnalyzer.
type Analyzer struct {
	store      *Store
	reasoner   RelationshipReasoner
	candidates CandidatePolicy
	timeout    time.Duration
	maxRetries int
}

// NewAnalyzerParams configures an Analyzer.
//
// Candidates defaults to CatalogCandidates over Store. Timeout bounds each
// call to the reasoner and defaults to 60 seconds. MaxRetries defaults to 3.
type NewAnalyzerParams struct {
	Store      *Store
	Reasoner   RelationshipReasoner
	Candidates CandidatePolicy
	Timeout    time.Duration
	MaxRetries int
}

// NewAnalyzer creates an Analyzer from params.
func NewAnalyzer(params NewAnalyzerParams) (*Analyzer, error) {
	if params.Store == nil {
		return nil, errors.New("graph store is required")
	}
	if params.Reasoner == nil {
		return nil, errors.New("relationship reasoner is required")
	}

	candidates := params.Candidates
	if candidates == nil {
		candidates = CatalogCandidates{Store: params.Store, Limit: DefaultCandidateLimit}
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Analyzer{
		store:      params.Store,
		reasoner:   params.Reasoner,
		candidates: candidates,
		timeout:    timeout,
		maxRetries: maxRetries,
	}, nil
}

// Store returns the store the analyzer writes to.
func (a *Analyzer) Store() *Store {
	return a.store
}

// AnalyzeProduct asks the reasoner about product id, normalizes the answer
// and replaces the product's edges with the result. It returns the number
// of relationships stored. A product without candidates ends up with no
// similarity edges.
func (a *Analyzer) AnalyzeProduct(ctx context.Context, id int64) (int, error) {
	node, err := a.store.Product(id)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("not_found").Inc()
		return 0, err
	}
	source := node.Product

	candidates, err := a.candidates.Candidates(ctx, source)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("failed").Inc()
		return 0, fmt.Errorf("failed to select candidates for product %d: %w", id, err)
	}

	var edges []Edge
	if len(candidates) > 0 {
		judgments, err := util.RetryWithContext(ctx, a.maxRetries, func(ctx context.Context) ([]common.Judgment, error) {
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			return a.reasoner.ProposeRelationships(callCtx, source, candidates)
		})
		if err != nil {
			metrics.AnalysisTotal.WithLabelValues("failed").Inc()
			return 0, fmt.Errorf("failed to propose relationships for product %d: %w", id, err)
		}

		res := Normalize(source, judgments, a.store)
		edges = res.Edges
		logger.Debug("[Graph] Normalized judgments",
			"product_id", id,
			"judgments", len(judgments),
			"kept", len(res.Edges),
			"dropped", len(res.Dropped),
			"clamped", res.Clamped,
		)
	}

	n, err := a.store.UpsertEdges(ctx, id, edges)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("failed").Inc()
		return 0, err
	}

	metrics.AnalysisTotal.WithLabelValues("success").Inc()
	logger.Info("[Graph] Analyzed product", "product_id", id, "relationships", n)
	return n, nil
}
