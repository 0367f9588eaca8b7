package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

func TestEnricher_Enrich(t *testing.T) {
	reply := mustJSON(common.Enrichment{
		EnrichedTitle:   "Acme Wireless Earbuds with Noise Cancelling",
		LongDescription: "Long description",
		SemanticTags:    []string{"audio"},
		UseCases:        []string{"commute"},
	})
	client := &fakeClient{reply: reply, tokens: 42}
	client.metrics.TotalTokens = 100

	product := catalogProduct(7, "Audio")
	product.Attributes = map[string]any{"color": "black"}

	e := NewEnricher(client, "")
	enrichment, usage, err := e.Enrich(context.Background(), product)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.ProductID != 7 {
		t.Fatalf("expected product id 7, got %d", enrichment.ProductID)
	}
	if usage.TokensUsed != 42 {
		t.Fatalf("expected 42 tokens, got %d", usage.TokensUsed)
	}
	if usage.Kind != EnrichmentKind {
		t.Fatalf("unexpected kind %q", usage.Kind)
	}
	if !strings.Contains(usage.Prompt, `"color": "black"`) || !strings.Contains(usage.Prompt, "SKU: SKU-007") {
		t.Fatalf("prompt missing product data:\n%s", usage.Prompt)
	}
}

func TestEnricher_EmptyResultFails(t *testing.T) {
	e := NewEnricher(&fakeClient{reply: `{}`}, "")
	if _, _, err := e.Enrich(context.Background(), catalogProduct(1, "")); err == nil {
		t.Fatalf("expected error for empty enrichment")
	}
}

func TestEnricher_EmbedPrefersEnrichedText(t *testing.T) {
	client := &fakeClient{}
	e := NewEnricher(client, "")

	product := catalogProduct(1, "")
	product.Description = "raw description"
	enrichment := &common.Enrichment{EnrichedTitle: "Better title", LongDescription: "enriched text"}

	if _, err := e.Embed(context.Background(), product, enrichment); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := client.prompts[0]; got != "Better title\nenriched text" {
		t.Fatalf("unexpected embedding input %q", got)
	}

	if _, err := e.Embed(context.Background(), product, nil); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got := client.prompts[1]; got != "Product 1\nraw description" {
		t.Fatalf("unexpected embedding input %q", got)
	}
}
