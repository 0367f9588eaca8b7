package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/google/go-cmp/cmp"
)

func projectedProduct(id int64) ProjectedNode {
	p := product(id, "", "")
	return ProjectedNode{
		ID:    ProductNodeID(id).String(),
		Label: p.Title,
		Type:  "product",
		Group: "Unknown",
		SKU:   p.SKU,
	}
}

// chain builds 1 - 2 - 3 - 4 plus product 5 attached to 1 and a cross-link
// between 2 and 5.
func chain(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""), product(3, "", ""), product(4, "", ""), product(5, "", ""))
	ctx := context.Background()

	upserts := map[int64][]Edge{
		1: {NewProductEdge(1, 2, common.RelationSimilarTo, 0.9, "")},
		2: {
			NewProductEdge(2, 3, common.RelationSimilarTo, 0.8, ""),
			NewProductEdge(2, 5, common.RelationComplements, 0.4, "cross"),
		},
		3: {NewProductEdge(3, 4, common.RelationSimilarTo, 0.7, "")},
		5: {NewProductEdge(5, 1, common.RelationAlternativeTo, 0.6, "")},
	}
	for _, id := range []int64{1, 2, 3, 5} {
		if _, err := s.UpsertEdges(ctx, id, upserts[id]); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	return s
}

func TestProject_TwoHopsWithCrossEdges(t *testing.T) {
	s := chain(t)

	got, err := s.Project(ProductNodeID(1), DefaultProjectionHops)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := Projection{
		Nodes: []ProjectedNode{projectedProduct(1), projectedProduct(2), projectedProduct(3), projectedProduct(5)},
		Edges: []ProjectedEdge{
			{Source: "1", Target: "2", Type: common.RelationSimilarTo, Score: 0.9},
			{Source: "2", Target: "3", Type: common.RelationSimilarTo, Score: 0.8},
			{Source: "2", Target: "5", Type: common.RelationComplements, Score: 0.4, Reasoning: "cross"},
			{Source: "5", Target: "1", Type: common.RelationAlternativeTo, Score: 0.6},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_FollowsIncomingEdges(t *testing.T) {
	s := chain(t)

	got, err := s.Project(ProductNodeID(4), 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := []ProjectedNode{projectedProduct(3), projectedProduct(4)}
	if diff := cmp.Diff(want, got.Nodes); diff != "" {
		t.Fatalf("nodes mismatch (-want +got):\n%s", diff)
	}
}

func TestProject_ReachesThroughAnchors(t *testing.T) {
	s := newTestStore(nil, product(1, "Audio", ""), product(2, "Audio", ""), product(3, "Video", ""))

	got, err := s.Project(ProductNodeID(1), 2)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	var nodeIDs []string
	for _, n := range got.Nodes {
		nodeIDs = append(nodeIDs, n.ID)
	}
	if diff := cmp.Diff([]string{"1", "category_Audio", "2"}, nodeIDs); diff != "" {
		t.Fatalf("nodes mismatch (-want +got):\n%s", diff)
	}
	for _, n := range got.Nodes {
		if n.ID == "category_Audio" && (n.Type != "category" || n.Group != "Category" || n.Label != "Audio") {
			t.Fatalf("unexpected category node: %+v", n)
		}
	}
}

func TestProject_UnknownNode(t *testing.T) {
	s := chain(t)
	if _, err := s.Project(ProductNodeID(42), 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFullGraph_Stats(t *testing.T) {
	s := chain(t)

	got := s.FullGraph()
	want := &Stats{TotalNodes: 5, TotalEdges: 5, Density: 5.0 / 20.0}
	if diff := cmp.Diff(want, got.Stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}

	empty := New().FullGraph()
	if empty.Stats.Density != 0 || len(empty.Nodes) != 0 || empty.Edges == nil {
		t.Fatalf("unexpected empty graph: %+v", empty)
	}
}
