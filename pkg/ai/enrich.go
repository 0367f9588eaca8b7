package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

// EnrichmentKind is recorded in the usage log for full product enrichments.
const EnrichmentKind = "full_enrichment"

// Enricher generates AEO content for products.
//
// An Enricher should be created using NewEnricher.
type Enricher struct {
	client GraphAIClient
	model  string
}

// NewEnricher creates an Enricher. model may be empty to use the client's default.
func NewEnricher(client GraphAIClient, model string) *Enricher {
	return &Enricher{client: client, model: model}
}

// Enrich asks the model for a structured enrichment of product. The
// returned usage carries the prompt and the token count observed on the
// client during the call.
func (e *Enricher) Enrich(ctx context.Context, product common.Product) (common.Enrichment, common.EnrichmentUsage, error) {
	prompt := fmt.Sprintf(EnrichmentPrompt,
		product.SKU,
		product.Title,
		orNA(product.Description),
		orNA(product.Category),
		orNA(product.Brand),
		formatPrice(product.Price),
		formatAttributes(product.Attributes),
	)

	var opts []GenerateOption
	if e.model != "" {
		opts = append(opts, WithModel(e.model))
	}
	opts = append(opts, WithTemperature(0.7))

	before := e.client.GetMetrics()

	var enrichment common.Enrichment
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"product_enrichment",
		"Answer engine optimized content for one product",
		prompt,
		&enrichment,
		opts...,
	)
	if err != nil {
		return common.Enrichment{}, common.EnrichmentUsage{}, fmt.Errorf("enrichment of product %d failed: %w", product.ID, err)
	}

	if strings.TrimSpace(enrichment.EnrichedTitle) == "" && strings.TrimSpace(enrichment.LongDescription) == "" {
		return common.Enrichment{}, common.EnrichmentUsage{}, fmt.Errorf("enrichment of product %d returned no content", product.ID)
	}

	enrichment.ID = 0
	enrichment.ProductID = product.ID

	after := e.client.GetMetrics()
	usage := common.EnrichmentUsage{
		Kind:       EnrichmentKind,
		Prompt:     prompt,
		TokensUsed: max(after.TotalTokens-before.TotalTokens, 0),
	}

	logger.Debug("[AI] Enriched product", "product_id", product.ID, "tokens", usage.TokensUsed)
	return enrichment, usage, nil
}

// Embed returns the embedding used for semantic candidate search. The
// enriched text is preferred over the raw description when available.
func (e *Enricher) Embed(ctx context.Context, product common.Product, enrichment *common.Enrichment) ([]float32, error) {
	text := product.DisplayTitle() + "\n" + product.Description
	if enrichment != nil && strings.TrimSpace(enrichment.LongDescription) != "" {
		text = enrichment.EnrichedTitle + "\n" + enrichment.LongDescription
	}
	text = strings.TrimSpace(ExtractFirstNWords(text, 512))
	if text == "" {
		return nil, fmt.Errorf("product %d has no text to embed", product.ID)
	}

	embedding, err := e.client.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("embedding of product %d failed: %w", product.ID, err)
	}
	return embedding, nil
}
