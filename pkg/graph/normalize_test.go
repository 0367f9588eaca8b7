package graph

import (
	"math"
	"strings"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

func TestNormalize_DropsUnknownTargetsAndTypes(t *testing.T) {
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""), product(3, "", ""))
	source, _ := s.ProductByID(1)

	judgments := []common.Judgment{
		{TargetProductID: 404, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.9},
		{TargetProductID: 2, RelationshipType: "UNKNOWN", SimilarityScore: 0.9},
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.8, Reasoning: "same family"},
		{TargetSKU: "SKU-003", RelationshipType: "complements", SimilarityScore: 0.6},
	}

	res := Normalize(source, judgments, s)

	if len(res.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", res.Edges)
	}
	if res.Edges[0].Target != ProductNodeID(2) || res.Edges[0].Type != common.RelationSimilarTo {
		t.Fatalf("unexpected first edge: %+v", res.Edges[0])
	}
	if res.Edges[1].Target != ProductNodeID(3) || res.Edges[1].Type != common.RelationComplements {
		t.Fatalf("expected SKU reference to resolve, got %+v", res.Edges[1])
	}

	reasons := map[int]DropReason{}
	for _, d := range res.Dropped {
		reasons[d.Index] = d.Reason
	}
	if reasons[0] != DropUnknownTarget || reasons[1] != DropUnknownType {
		t.Fatalf("unexpected drop reasons: %+v", res.Dropped)
	}
}

func TestNormalize_RejectsSelfAndStructural(t *testing.T) {
	s := newTestStore(nil, product(1, "Audio", ""), product(2, "", ""))
	source, _ := s.ProductByID(1)

	res := Normalize(source, []common.Judgment{
		{TargetProductID: 1, RelationshipType: "SIMILAR_TO", SimilarityScore: 1},
		{TargetSKU: "SKU-001", RelationshipType: "ALTERNATIVE_TO", SimilarityScore: 1},
		{TargetProductID: 2, RelationshipType: "BELONGS_TO", SimilarityScore: 1},
	}, s)

	if len(res.Edges) != 0 {
		t.Fatalf("expected no edges, got %+v", res.Edges)
	}
	want := []DropReason{DropSelfReference, DropSelfReference, DropStructuralType}
	for i, d := range res.Dropped {
		if d.Reason != want[i] {
			t.Fatalf("judgment %d: expected %s, got %s", i, want[i], d.Reason)
		}
	}
}

func TestNormalize_ClampsScores(t *testing.T) {
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""), product(3, "", ""), product(4, "", ""))
	source, _ := s.ProductByID(1)

	res := Normalize(source, []common.Judgment{
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 1.7},
		{TargetProductID: 3, RelationshipType: "SIMILAR_TO", SimilarityScore: -0.2},
		{TargetProductID: 4, RelationshipType: "SIMILAR_TO", SimilarityScore: math.NaN()},
	}, s)

	if len(res.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", res.Edges)
	}
	if res.Edges[0].Score != 1 || res.Edges[1].Score != 0 {
		t.Fatalf("expected scores clamped to 1 and 0, got %v and %v", res.Edges[0].Score, res.Edges[1].Score)
	}
	if res.Clamped != 2 {
		t.Fatalf("expected 2 clamped judgments, got %d", res.Clamped)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].Reason != DropInvalidScore {
		t.Fatalf("expected NaN score to be dropped, got %+v", res.Dropped)
	}
}

func TestNormalize_DeduplicatesKeepingHighestScore(t *testing.T) {
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""), product(3, "", ""))
	source, _ := s.ProductByID(1)

	res := Normalize(source, []common.Judgment{
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.4, Reasoning: "low"},
		{TargetProductID: 3, RelationshipType: "COMPLEMENTS", SimilarityScore: 0.5, Reasoning: "first"},
		{TargetSKU: "SKU-002", RelationshipType: "similar to", SimilarityScore: 0.9, Reasoning: "high"},
		{TargetProductID: 3, RelationshipType: "COMPLEMENTS", SimilarityScore: 0.5, Reasoning: "second"},
		{TargetProductID: 2, RelationshipType: "ALTERNATIVE_TO", SimilarityScore: 0.3},
	}, s)

	if len(res.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %+v", res.Edges)
	}
	if res.Edges[0].Reasoning != "high" || res.Edges[0].Score != 0.9 {
		t.Fatalf("expected higher score to win, got %+v", res.Edges[0])
	}
	if res.Edges[1].Reasoning != "first" {
		t.Fatalf("expected earliest judgment to win a tie, got %+v", res.Edges[1])
	}
	if res.Edges[2].Type != common.RelationAlternativeTo {
		t.Fatalf("expected a different type for the same pair to be kept, got %+v", res.Edges[2])
	}
	if len(res.Dropped) != 2 {
		t.Fatalf("expected 2 duplicates dropped, got %+v", res.Dropped)
	}
}

func TestNormalize_CleansReasoning(t *testing.T) {
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""))
	source, _ := s.ProductByID(1)

	long := strings.Repeat("word ", 200)
	res := Normalize(source, []common.Judgment{
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.5, Reasoning: "  two\n\tlines  " + long},
	}, s)

	got := res.Edges[0].Reasoning
	if !strings.HasPrefix(got, "two lines word") {
		t.Fatalf("expected whitespace collapsed, got %q", got[:20])
	}
	if len([]rune(got)) > MaxReasoningLength {
		t.Fatalf("expected reasoning capped at %d characters, got %d", MaxReasoningLength, len([]rune(got)))
	}
}

func TestNormalize_OutputIsAcceptedByStore(t *testing.T) {
	s := newTestStore(nil, product(1, "", ""), product(2, "", ""), product(3, "", ""))
	source, _ := s.ProductByID(1)

	res := Normalize(source, []common.Judgment{
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 3},
		{TargetProductID: 2, RelationshipType: "SIMILAR_TO", SimilarityScore: 2},
		{TargetProductID: 1, RelationshipType: "SIMILAR_TO", SimilarityScore: 1},
		{TargetProductID: 3, RelationshipType: "garbage", SimilarityScore: 1},
	}, s)

	if err := s.validateLocked(1, res.Edges); err != nil {
		t.Fatalf("expected normalized edges to be valid, got %v", err)
	}
}
