package graph

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Locker serializes work on one product across processes.
type Locker interface {
	WithLock(ctx context.Context, productID int64, fn func(ctx context.Context) error) error
}

// Progress is reported once per product handled by a batch.
type Progress struct {
	ProductID          int64 `json:"product_id"`
	Processed          int   `json:"processed"`
	Total              int   `json:"total"`
	RelationshipsFound int   `json:"relationships_found"`
	Err                error `json:"-"`
}

// BatchOptions narrows a batch run.
//
// ProductIDs restricts the run to the given products; all products of the
// store are analyzed when it is empty. OnlyUnanalyzed skips products whose
// relationships were already analyzed, which resumes an interrupted batch.
// OnProgress is called sequentially, never concurrently.
type BatchOptions struct {
	ProductIDs     []int64
	OnlyUnanalyzed bool
	OnProgress     func(Progress)
}

// BatchResult summarizes a batch run. Processed counts every product that
// was attempted, including the failed ones.
type BatchResult struct {
	TotalProducts      int `json:"total_products"`
	Processed          int `json:"processed"`
	Failed             int `json:"failed"`
	Skipped            int `json:"skipped"`
	TotalRelationships int `json:"total_relationships"`
}

// Orchestrator runs relationship analysis over many products with a bounded
// number of workers and a paced call rate.
//
// An Orchestrator should be created using NewOrchestrator.
type Orchestrator struct {
	analyzer       *Analyzer
	workers        int
	limiter        *rate.Limiter
	locker         Locker
	productTimeout time.Duration
}

// NewOrchestratorParams configures an Orchestrator.
//
// Workers defaults to 1. RatePerSecond limits how many analyses start per
// second; zero disables pacing. Locker is optional. ProductTimeout bounds
// one product's analysis including retries and defaults to 5 minutes.
type NewOrchestratorParams struct {
	Analyzer       *Analyzer
	Workers        int
	RatePerSecond  float64
	Locker         Locker
	ProductTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator from params.
func NewOrchestrator(params NewOrchestratorParams) (*Orchestrator, error) {
	if params.Analyzer == nil {
		return nil, errors.New("analyzer is required")
	}

	workers := max(params.Workers, 1)
	limiter := rate.NewLimiter(rate.Inf, 0)
	if params.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RatePerSecond), workers)
	}
	timeout := params.ProductTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Orchestrator{
		analyzer:       params.Analyzer,
		workers:        workers,
		limiter:        limiter,
		locker:         params.Locker,
		productTimeout: timeout,
	}, nil
}

// Run analyzes the selected products. A failure on one product is logged
// and counted but never stops the batch. Cancelling ctx stops scheduling new
// products; analyses already in flight complete and are committed. In that
// case Run returns the partial result together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, opts BatchOptions) (BatchResult, error) {
	store := o.analyzer.Store()

	ids := opts.ProductIDs
	if len(ids) == 0 {
		for _, p := range store.Products() {
			ids = append(ids, p.ID)
		}
	}

	res := BatchResult{TotalProducts: len(ids)}
	mutex := sync.Mutex{}

	logger.Info("[Batch] Starting relationship analysis", "total_products", len(ids), "workers", o.workers)

	var eg errgroup.Group
	eg.SetLimit(o.workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if opts.OnlyUnanalyzed && store.Analyzed(id) {
			mutex.Lock()
			res.Skipped++
			mutex.Unlock()
			metrics.BatchProducts.WithLabelValues("skipped").Inc()
			continue
		}

		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if err := o.limiter.Wait(ctx); err != nil {
				return nil
			}

			n, err := o.analyze(ctx, id)

			mutex.Lock()
			defer mutex.Unlock()

			res.Processed++
			if err != nil {
				res.Failed++
				metrics.BatchProducts.WithLabelValues("failed").Inc()
				logger.Error("[Batch] Failed to analyze product", "product_id", id, "err", err)
			} else {
				res.TotalRelationships += n
				metrics.BatchProducts.WithLabelValues("processed").Inc()
			}
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{
					ProductID:          id,
					Processed:          res.Processed,
					Total:              res.TotalProducts,
					RelationshipsFound: n,
					Err:                err,
				})
			}
			return nil
		})
	}

	_ = eg.Wait()

	logger.Info("[Batch] Relationship analysis finished",
		"processed", res.Processed,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"relationships", res.TotalRelationships,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// AnalyzeProduct analyzes a single product under the orchestrator's lock.
// Like a batch member, the analysis is not cancelled with ctx once started.
func (o *Orchestrator) AnalyzeProduct(ctx context.Context, id int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return o.analyze(ctx, id)
}

// analyze runs one product detached from the batch's cancellation so an
// analysis that has started is allowed to finish.
func (o *Orchestrator) analyze(ctx context.Context, id int64) (int, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.productTimeout)
	defer cancel()

	if o.locker == nil {
		return o.analyzer.AnalyzeProduct(runCtx, id)
	}

	var n int
	err := o.locker.WithLock(runCtx, id, func(ctx context.Context) error {
		var err error
		n, err = o.analyzer.AnalyzeProduct(ctx, id)
		return err
	})
	return n, err
}
