package graph

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// DefaultRecommendationLimit is the per-type list size used by the API.
const DefaultRecommendationLimit = 5

// Recommendation is one ranked outgoing edge joined with its target product.
type Recommendation struct {
	ProductID        int64               `json:"product_id"`
	SKU              string              `json:"sku"`
	Title            string              `json:"title"`
	Category         string              `json:"category"`
	Brand            string              `json:"brand"`
	Price            *float64            `json:"price"`
	RelationshipType common.RelationType `json:"relationship_type"`
	SimilarityScore  float64             `json:"similarity_score"`
	Reasoning        string              `json:"reasoning"`
}

// Recommendations groups a product's similarity edges by type.
type Recommendations struct {
	Similar      []Recommendation `json:"similar"`
	Complements  []Recommendation `json:"complements"`
	Alternatives []Recommendation `json:"alternatives"`
}

// Recommendations ranks the outgoing similarity edges of productID by
// descending score, ties broken by insertion order, and keeps at most limit
// entries per type. A limit <= 0 keeps all of them.
func (s *Store) Recommendations(productID int64, limit int) (Recommendations, error) {
	rels, err := s.Relationships(productID)
	if err != nil {
		return Recommendations{}, err
	}

	res := Recommendations{
		Similar:      []Recommendation{},
		Complements:  []Recommendation{},
		Alternatives: []Recommendation{},
	}
	for _, r := range rels {
		switch r.RelationshipType {
		case common.RelationSimilarTo:
			res.Similar = appendLimited(res.Similar, r, limit)
		case common.RelationComplements:
			res.Complements = appendLimited(res.Complements, r, limit)
		case common.RelationAlternativeTo:
			res.Alternatives = appendLimited(res.Alternatives, r, limit)
		}
	}
	return res, nil
}

func appendLimited(list []Recommendation, r Recommendation, limit int) []Recommendation {
	if limit > 0 && len(list) >= limit {
		return list
	}
	return append(list, r)
}

// Relationships returns every outgoing similarity edge of productID joined
// with its target, ranked by descending score with ties in insertion order.
func (s *Store) Relationships(productID int64) ([]Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := ProductNodeID(productID)
	if _, ok := s.nodes[src].(ProductNode); !ok {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	edges := make([]Edge, 0, len(s.out[src]))
	for _, e := range s.out[src] {
		if e.Type.IsSimilarity() {
			edges = append(edges, e)
		}
	}
	slices.SortStableFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Recommendation, 0, len(edges))
	for _, e := range edges {
		target, ok := s.nodes[e.Target].(ProductNode)
		if !ok {
			continue
		}
		p := target.Product
		out = append(out, Recommendation{
			ProductID:        p.ID,
			SKU:              p.SKU,
			Title:            p.DisplayTitle(),
			Category:         p.Category,
			Brand:            p.Brand,
			Price:            p.Price,
			RelationshipType: e.Type,
			SimilarityScore:  e.Score,
			Reasoning:        e.Reasoning,
		})
	}
	return out, nil
}
