package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aeo-platform/aeo/backend/internal/util"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
	"github.com/aeo-platform/aeo/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const productInsertChunkSize = 500

const insertProductSQL = `
INSERT INTO products (sku, title, description, category, brand, price, attributes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (sku) DO NOTHING
RETURNING id, created_at;
`

// productColumns selects a product together with the title of its latest
// enrichment.
const productColumns = `
p.id, p.sku, p.title, p.description, p.category, p.brand, p.price, p.attributes, p.created_at,
COALESCE((
    SELECT e.enriched_title FROM enrichments e
    WHERE e.product_id = p.id
    ORDER BY e.created_at DESC, e.id DESC
    LIMIT 1
), '')
`

var listProductsSQL = `SELECT ` + productColumns + ` FROM products p ORDER BY p.id OFFSET $1 LIMIT $2;`

var getProductSQL = `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1;`

var allProductsSQL = `SELECT ` + productColumns + ` FROM products p ORDER BY p.id;`

func scanProduct(row pgxv5.Row) (common.Product, error) {
	var p common.Product
	err := row.Scan(
		&p.ID,
		&p.SKU,
		&p.Title,
		&p.Description,
		&p.Category,
		&p.Brand,
		&p.Price,
		&p.Attributes,
		&p.CreatedAt,
		&p.EnrichedTitle,
	)
	return p, err
}

func collectProducts(rows pgxv5.Rows) ([]common.Product, error) {
	defer rows.Close()

	var out []common.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProducts inserts products in chunks, one transaction per chunk.
// Rows whose SKU already exists are skipped and counted.
func (s *CatalogDBStorage) CreateProducts(ctx context.Context, products []common.Product) ([]common.Product, int, error) {
	created := make([]common.Product, 0, len(products))
	skipped := 0

	err := store.ChunkRange(len(products), productInsertChunkSize, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		batch := &pgxv5.Batch{}
		chunk := products[start:end]
		for _, p := range chunk {
			attrs := p.Attributes
			if attrs == nil {
				attrs = map[string]any{}
			}
			batch.Queue(insertProductSQL,
				util.SanitizePostgresText(strings.TrimSpace(p.SKU)),
				util.SanitizePostgresText(p.Title),
				util.SanitizePostgresText(p.Description),
				util.SanitizePostgresText(p.Category),
				util.SanitizePostgresText(p.Brand),
				p.Price,
				attrs,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, p := range chunk {
			err := results.QueryRow().Scan(&p.ID, &p.CreatedAt)
			if errors.Is(err, pgxv5.ErrNoRows) {
				logger.Warn("[Store] Skipping duplicate SKU", "sku", p.SKU)
				skipped++
				continue
			}
			if err != nil {
				results.Close()
				return fmt.Errorf("failed to insert product %s: %w", p.SKU, err)
			}
			p.SKU = util.SanitizePostgresText(strings.TrimSpace(p.SKU))
			p.Title = util.SanitizePostgresText(p.Title)
			p.Description = util.SanitizePostgresText(p.Description)
			p.Category = util.SanitizePostgresText(p.Category)
			p.Brand = util.SanitizePostgresText(p.Brand)
			created = append(created, p)
		}
		if err := results.Close(); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, 0, err
	}

	return created, skipped, nil
}

func (s *CatalogDBStorage) ListProducts(ctx context.Context, offset, limit int) ([]common.Product, error) {
	rows, err := s.conn.Query(ctx, listProductsSQL, max(offset, 0), limit)
	if err != nil {
		return nil, err
	}
	return collectProducts(rows)
}

func (s *CatalogDBStorage) GetProduct(ctx context.Context, id int64) (common.Product, error) {
	p, err := scanProduct(s.conn.QueryRow(ctx, getProductSQL, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Product{}, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return p, err
}
