package pgx

import (
	"context"
	"fmt"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

const hasEmbeddingSQL = `
SELECT embedding IS NOT NULL FROM products WHERE id = $1;
`

const nearestProductsSQL = `
SELECT p.id
FROM products p, (SELECT embedding FROM products WHERE id = $1) src
WHERE p.id <> $1 AND p.embedding IS NOT NULL
ORDER BY p.embedding <=> src.embedding, p.id
LIMIT $2;
`

// SemanticCandidates offers the products whose description embeddings are
// nearest to the source's by cosine distance. Products without an
// embedding, and any slots left after the search, fall back to the
// catalog order.
type SemanticCandidates struct {
	Storage *CatalogDBStorage
	Graph   *graph.Store
	Limit   int
}

func (c SemanticCandidates) Candidates(ctx context.Context, source common.Product) ([]common.Product, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = graph.DefaultCandidateLimit
	}
	fallback := graph.CatalogCandidates{Store: c.Graph, Limit: limit}

	var hasEmbedding bool
	if err := c.Storage.conn.QueryRow(ctx, hasEmbeddingSQL, source.ID).Scan(&hasEmbedding); err != nil {
		return nil, fmt.Errorf("failed to look up embedding: %w", err)
	}
	if !hasEmbedding {
		logger.Debug("[Store] No embedding, using catalog candidates", "product_id", source.ID)
		return fallback.Candidates(ctx, source)
	}

	rows, err := c.Storage.conn.Query(ctx, nearestProductsSQL, source.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search nearest products: %w", err)
	}
	defer rows.Close()

	out := make([]common.Product, 0, limit)
	seen := map[int64]bool{source.ID: true}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		// The database can be ahead of the in-memory graph.
		p, ok := c.Graph.ProductByID(id)
		if !ok {
			continue
		}
		out = append(out, p)
		seen[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) < limit {
		rest, err := graph.CatalogCandidates{Store: c.Graph, Limit: limit + len(seen)}.Candidates(ctx, source)
		if err != nil {
			return nil, err
		}
		for _, p := range rest {
			if len(out) == limit {
				break
			}
			if !seen[p.ID] {
				out = append(out, p)
			}
		}
	}
	return out, nil
}
