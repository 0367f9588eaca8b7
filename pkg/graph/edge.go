package graph

import (
	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// Edge is a directed, typed, weighted connection between two nodes.
// At most one edge exists per (Source, Target, Type).
type Edge struct {
	Source    NodeID
	Target    NodeID
	Type      common.RelationType
	Score     float64
	Reasoning string

	// seq orders edges by insertion; it breaks ranking ties.
	seq uint64
}

type edgeKey struct {
	target NodeID
	typ    common.RelationType
}

func (e Edge) key() edgeKey {
	return edgeKey{target: e.Target, typ: e.Type}
}

// NewProductEdge builds a similarity edge between two products.
func NewProductEdge(sourceID, targetID int64, typ common.RelationType, score float64, reasoning string) Edge {
	return Edge{
		Source:    ProductNodeID(sourceID),
		Target:    ProductNodeID(targetID),
		Type:      typ,
		Score:     score,
		Reasoning: reasoning,
	}
}

// Relationship converts a product-to-product edge into its persisted form.
func (e Edge) Relationship() (common.Relationship, bool) {
	src, ok := e.Source.ProductID()
	if !ok {
		return common.Relationship{}, false
	}
	tgt, ok := e.Target.ProductID()
	if !ok {
		return common.Relationship{}, false
	}
	return common.Relationship{
		SourceID:  src,
		TargetID:  tgt,
		Type:      e.Type,
		Score:     e.Score,
		Reasoning: e.Reasoning,
	}, true
}

// EdgeFromRelationship is the inverse of Edge.Relationship.
func EdgeFromRelationship(r common.Relationship) Edge {
	return NewProductEdge(r.SourceID, r.TargetID, r.Type, r.Score, r.Reasoning)
}
