package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/graph"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/store"

	"github.com/jackc/pgx/v5/pgconn"
)

const deleteProductRelationshipsSQL = `
DELETE FROM product_relationships WHERE source_product_id = $1;
`

const insertProductRelationshipsSQL = `
INSERT INTO product_relationships (source_product_id, target_product_id, relationship_type,
                                   similarity_score, reasoning, position)
SELECT $1, t.target, t.typ, t.score, t.reasoning, t.ord - 1
FROM unnest($2::bigint[], $3::text[], $4::float8[], $5::text[]) WITH ORDINALITY
     AS t(target, typ, score, reasoning, ord);
`

const markAnalyzedSQL = `
UPDATE products SET relationships_analyzed_at = now() WHERE id = $1;
`

const allRelationshipsSQL = `
SELECT source_product_id, target_product_id, relationship_type, similarity_score, reasoning
FROM product_relationships
ORDER BY source_product_id, position;
`

const analyzedProductsSQL = `
SELECT id FROM products WHERE relationships_analyzed_at IS NOT NULL ORDER BY id;
`

// ReplaceProductEdges replaces every relationship originating at sourceID
// with relationships and marks the product as analyzed, in one transaction.
func (s *CatalogDBStorage) ReplaceProductEdges(ctx context.Context, sourceID int64, relationships []common.Relationship) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, markAnalyzedSQL, sourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", sourceID, store.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, deleteProductRelationshipsSQL, sourceID); err != nil {
		return fmt.Errorf("failed to delete relationships: %w", err)
	}

	if len(relationships) > 0 {
		targets := make([]int64, len(relationships))
		types := make([]string, len(relationships))
		scores := make([]float64, len(relationships))
		reasons := make([]string, len(relationships))
		for i, r := range relationships {
			targets[i] = r.TargetID
			types[i] = string(r.Type)
			scores[i] = r.Score
			reasons[i] = util.SanitizePostgresText(r.Reasoning)
		}

		if _, err := tx.Exec(ctx, insertProductRelationshipsSQL, sourceID, targets, types, scores, reasons); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return fmt.Errorf("relationship target: %w", store.ErrNotFound)
			}
			return fmt.Errorf("failed to insert relationships: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Debug("[Store] Replaced relationships", "product_id", sourceID, "count", len(relationships))
	return nil
}

// LoadSnapshot reads all products, relationships and analysis markers.
func (s *CatalogDBStorage) LoadSnapshot(ctx context.Context) (graph.Snapshot, error) {
	var snap graph.Snapshot

	rows, err := s.conn.Query(ctx, allProductsSQL)
	if err != nil {
		return snap, err
	}
	snap.Products, err = collectProducts(rows)
	if err != nil {
		return snap, fmt.Errorf("failed to load products: %w", err)
	}

	rows, err = s.conn.Query(ctx, allRelationshipsSQL)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var (
			r   common.Relationship
			typ string
		)
		if err := rows.Scan(&r.SourceID, &r.TargetID, &typ, &r.Score, &r.Reasoning); err != nil {
			rows.Close()
			return snap, err
		}
		r.Type = common.RelationType(typ)
		snap.Relationships = append(snap.Relationships, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("failed to load relationships: %w", err)
	}

	rows, err = s.conn.Query(ctx, analyzedProductsSQL)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return snap, err
		}
		snap.Analyzed = append(snap.Analyzed, id)
	}
	return snap, rows.Err()
}
