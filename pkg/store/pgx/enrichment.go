package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

const foreignKeyViolation = "23503"

const latestEnrichmentSQL = `
SELECT id, product_id, enriched_title, long_description, key_attributes, faqs,
       semantic_tags, use_cases, aeo_score, created_at
FROM enrichments
WHERE product_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1;
`

const insertEnrichmentSQL = `
INSERT INTO enrichments (product_id, enriched_title, long_description, key_attributes, faqs,
                         semantic_tags, use_cases, aeo_score)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at;
`

const insertScoreHistorySQL = `
INSERT INTO score_history (product_id, aeo_score, calculated_at)
VALUES ($1, $2, $3);
`

const insertEnrichmentLogSQL = `
INSERT INTO enrichment_logs (product_id, enrichment_type, prompt_used, tokens_used)
VALUES ($1, $2, $3, $4);
`

const updateEmbeddingSQL = `
UPDATE products SET embedding = $2 WHERE id = $1;
`

func (s *CatalogDBStorage) LatestEnrichment(ctx context.Context, productID int64) (*common.Enrichment, error) {
	var e common.Enrichment
	err := s.conn.QueryRow(ctx, latestEnrichmentSQL, productID).Scan(
		&e.ID,
		&e.ProductID,
		&e.EnrichedTitle,
		&e.LongDescription,
		&e.KeyAttributes,
		&e.FAQs,
		&e.SemanticTags,
		&e.UseCases,
		&e.AEOScore,
		&e.CreatedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveEnrichment writes the enrichment, its score history entry and the
// usage log in one transaction.
func (s *CatalogDBStorage) SaveEnrichment(
	ctx context.Context,
	enrichment common.Enrichment,
	usage common.EnrichmentUsage,
) (common.Enrichment, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.Enrichment{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, insertEnrichmentSQL,
		enrichment.ProductID,
		enrichment.EnrichedTitle,
		enrichment.LongDescription,
		nonNil(enrichment.KeyAttributes),
		nonNil(enrichment.FAQs),
		nonNil(enrichment.SemanticTags),
		nonNil(enrichment.UseCases),
		enrichment.AEOScore,
	).Scan(&enrichment.ID, &enrichment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return common.Enrichment{}, fmt.Errorf("product %d: %w", enrichment.ProductID, store.ErrNotFound)
		}
		return common.Enrichment{}, fmt.Errorf("failed to insert enrichment: %w", err)
	}

	if _, err := tx.Exec(ctx, insertScoreHistorySQL, enrichment.ProductID, enrichment.AEOScore, enrichment.CreatedAt); err != nil {
		return common.Enrichment{}, fmt.Errorf("failed to insert score history: %w", err)
	}

	if usage.Kind != "" {
		if _, err := tx.Exec(ctx, insertEnrichmentLogSQL, enrichment.ProductID, usage.Kind, usage.Prompt, usage.TokensUsed); err != nil {
			return common.Enrichment{}, fmt.Errorf("failed to insert enrichment log: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Enrichment{}, err
	}
	return enrichment, nil
}

func (s *CatalogDBStorage) SaveEmbedding(ctx context.Context, productID int64, embedding []float32) error {
	tag, err := s.conn.Exec(ctx, updateEmbeddingSQL, productID, pgvector.NewVector(embedding))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
