package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

func catalogProduct(id int64, category string) common.Product {
	price := float64(id) * 10
	return common.Product{
		ID:       id,
		SKU:      fmt.Sprintf("SKU-%03d", id),
		Title:    fmt.Sprintf("Product %d", id),
		Category: category,
		Price:    &price,
	}
}

func TestRelationshipReasoner_ParsesAndCaps(t *testing.T) {
	judgments := make([]common.Judgment, 0, 7)
	for i := int64(2); i <= 8; i++ {
		judgments = append(judgments, common.Judgment{
			TargetProductID:  i,
			RelationshipType: "SIMILAR_TO",
			SimilarityScore:  0.8,
		})
	}
	client := &fakeClient{reply: "```json\n" + mustJSON(RelationshipResponse{Relationships: judgments}) + "\n```"}

	r, err := NewRelationshipReasoner(NewRelationshipReasonerParams{Client: client})
	if err != nil {
		t.Fatalf("NewRelationshipReasoner: %v", err)
	}

	candidates := []common.Product{catalogProduct(2, "Audio"), catalogProduct(3, "")}
	got, err := r.ProposeRelationships(context.Background(), catalogProduct(1, "Audio"), candidates)
	if err != nil {
		t.Fatalf("ProposeRelationships: %v", err)
	}
	if len(got) != DefaultMaxRelationships {
		t.Fatalf("expected %d judgments, got %d", DefaultMaxRelationships, len(got))
	}
	if got[0].TargetProductID != 2 {
		t.Fatalf("expected first target 2, got %d", got[0].TargetProductID)
	}

	prompt := client.prompts[0]
	for _, want := range []string{
		"- ID 2 (SKU SKU-002): Product 2 | Category: Audio | Brand: N/A | Price: $20.00",
		"- ID 3 (SKU SKU-003): Product 3 | Category: N/A",
		"Identify up to 5 meaningful relationships",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRelationshipReasoner_NoCandidatesSkipsModel(t *testing.T) {
	client := &fakeClient{}
	r, err := NewRelationshipReasoner(NewRelationshipReasonerParams{Client: client})
	if err != nil {
		t.Fatalf("NewRelationshipReasoner: %v", err)
	}

	got, err := r.ProposeRelationships(context.Background(), catalogProduct(1, ""), nil)
	if err != nil || got != nil {
		t.Fatalf("expected no judgments and no error, got %v, %v", got, err)
	}
	if client.callCount() != 0 {
		t.Fatalf("model must not be called without candidates")
	}
}

func TestRelationshipReasoner_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewRelationshipReasoner(NewRelationshipReasonerParams{Client: &fakeClient{err: boom}})
	if err != nil {
		t.Fatalf("NewRelationshipReasoner: %v", err)
	}

	_, err = r.ProposeRelationships(context.Background(), catalogProduct(1, ""), []common.Product{catalogProduct(2, "")})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestRelationshipReasoner_RequiresClient(t *testing.T) {
	if _, err := NewRelationshipReasoner(NewRelationshipReasonerParams{}); err == nil {
		t.Fatalf("expected error for missing client")
	}
}
