package graph

import (
	"context"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// DefaultCandidateLimit bounds the number of products offered to the
// reasoning collaborator per analysis.
const DefaultCandidateLimit = 20

// CandidatePolicy chooses the products a source product is compared with.
type CandidatePolicy interface {
	Candidates(ctx context.Context, source common.Product) ([]common.Product, error)
}

// CatalogCandidates offers the whole catalog except the source, ordered by
// id and capped at Limit.
type CatalogCandidates struct {
	Store *Store
	Limit int
}

func (c CatalogCandidates) Candidates(_ context.Context, source common.Product) ([]common.Product, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	var out []common.Product
	for _, p := range c.Store.Products() {
		if len(out) == limit {
			break
		}
		if p.ID != source.ID {
			out = append(out, p)
		}
	}
	return out, nil
}

// CategoryCandidates offers products of the source's category first and
// fills the remaining slots from the rest of the catalog.
type CategoryCandidates struct {
	Store *Store
	Limit int
}

func (c CategoryCandidates) Candidates(_ context.Context, source common.Product) ([]common.Product, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	var same, other []common.Product
	for _, p := range c.Store.Products() {
		if p.ID == source.ID {
			continue
		}
		if source.Category != "" && p.Category == source.Category {
			same = append(same, p)
		} else {
			other = append(other, p)
		}
	}

	out := append(same, other...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
