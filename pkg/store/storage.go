package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
)

// ErrNotFound is returned when a requested catalog record does not exist.
var ErrNotFound = errors.New("store: not found")

// CatalogStorage persists the product catalog, enrichments and the
// product-to-product relationships of the graph.
type CatalogStorage interface {
	graph.Persister

	// CreateProducts inserts products and returns the created rows with
	// their ids. Products whose SKU already exists are skipped.
	CreateProducts(ctx context.Context, products []common.Product) (created []common.Product, skipped int, err error)
	ListProducts(ctx context.Context, offset, limit int) ([]common.Product, error)
	GetProduct(ctx context.Context, id int64) (common.Product, error)

	// LatestEnrichment returns the newest enrichment of a product, or nil
	// when the product has never been enriched.
	LatestEnrichment(ctx context.Context, productID int64) (*common.Enrichment, error)
	// SaveEnrichment stores a new enrichment that supersedes earlier ones,
	// appends its score to the score history and records the model usage.
	SaveEnrichment(ctx context.Context, enrichment common.Enrichment, usage common.EnrichmentUsage) (common.Enrichment, error)
	SaveEmbedding(ctx context.Context, productID int64, embedding []float32) error

	// LoadSnapshot reads everything the in-memory graph is rebuilt from.
	LoadSnapshot(ctx context.Context) (graph.Snapshot, error)
}

// RefreshGraph replaces the content of g with the durable state in s.
func RefreshGraph(ctx context.Context, s CatalogStorage, g *graph.Store) error {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph snapshot: %w", err)
	}
	g.Restore(snap)
	return nil
}
