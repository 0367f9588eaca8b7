package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultMaxRelationships is the number of relationships requested per product.
const DefaultMaxRelationships = 5

// RelationshipResponse is the structured answer expected from the model.
type RelationshipResponse struct {
	Relationships []common.Judgment `json:"relationships" jsonschema_description:"Relationships between the source product and catalog products, at most the requested number."`
}

// RelationshipReasoner asks a language model which catalog products are
// similar to, complement or are alternatives to a source product.
//
// A RelationshipReasoner should be created using NewRelationshipReasoner.
type RelationshipReasoner struct {
	client           GraphAIClient
	model            string
	maxRelationships int
	maxPromptTokens  int
	encoder          *tiktoken.Tiktoken
}

// NewRelationshipReasonerParams configures a RelationshipReasoner.
//
// Model overrides the client's default model. MaxRelationships defaults to
// DefaultMaxRelationships. When MaxPromptTokens is positive, candidates are
// dropped from the end of the list until the prompt fits, counted with
// TokenEncoder (default "o200k_base").
type NewRelationshipReasonerParams struct {
	Client           GraphAIClient
	Model            string
	MaxRelationships int
	MaxPromptTokens  int
	TokenEncoder     string
}

// NewRelationshipReasoner creates a RelationshipReasoner from params.
func NewRelationshipReasoner(params NewRelationshipReasonerParams) (*RelationshipReasoner, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("ai client is nil")
	}

	r := &RelationshipReasoner{
		client:           params.Client,
		model:            params.Model,
		maxRelationships: params.MaxRelationships,
		maxPromptTokens:  params.MaxPromptTokens,
	}
	if r.maxRelationships <= 0 {
		r.maxRelationships = DefaultMaxRelationships
	}

	if r.maxPromptTokens > 0 {
		encoding := params.TokenEncoder
		if encoding == "" {
			encoding = "o200k_base"
		}
		enc, err := tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoder %s: %w", encoding, err)
		}
		r.encoder = enc
	}

	return r, nil
}

// ProposeRelationships returns the model's judgments about source. The
// result is untrusted: targets, types and scores still need validation.
func (r *RelationshipReasoner) ProposeRelationships(
	ctx context.Context,
	source common.Product,
	candidates []common.Product,
) ([]common.Judgment, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := r.buildPrompt(source, candidates)

	var opts []GenerateOption
	if r.model != "" {
		opts = append(opts, WithModel(r.model))
	}
	opts = append(opts, WithTemperature(0.1))

	var resp RelationshipResponse
	err := r.client.GenerateCompletionWithFormat(
		ctx,
		"product_relationships",
		"Typed relationships between a source product and other catalog products",
		prompt,
		&resp,
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("relationship reasoning failed: %w", err)
	}

	if len(resp.Relationships) > r.maxRelationships {
		logger.Debug("[AI] Truncating relationships", "product_id", source.ID, "returned", len(resp.Relationships), "max", r.maxRelationships)
		resp.Relationships = resp.Relationships[:r.maxRelationships]
	}
	return resp.Relationships, nil
}

func (r *RelationshipReasoner) buildPrompt(source common.Product, candidates []common.Product) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		lines = append(lines, fmt.Sprintf("- ID %d (SKU %s): %s | Category: %s | Brand: %s | Price: %s",
			c.ID, c.SKU, c.DisplayTitle(), orNA(c.Category), orNA(c.Brand), formatPrice(c.Price)))
	}

	render := func(lines []string) string {
		return fmt.Sprintf(RelationshipPrompt,
			source.ID,
			source.SKU,
			source.DisplayTitle(),
			orNA(ExtractFirstNWords(source.Description, 200)),
			orNA(source.Category),
			orNA(source.Brand),
			formatPrice(source.Price),
			strings.Join(lines, "\n"),
			r.maxRelationships,
		)
	}

	prompt := render(lines)
	if r.encoder == nil {
		return prompt
	}
	for len(lines) > 1 && len(r.encoder.Encode(prompt, nil, nil)) > r.maxPromptTokens {
		lines = lines[:len(lines)-1]
		prompt = render(lines)
	}
	if len(lines) < len(candidates) {
		logger.Debug("[AI] Trimmed candidates to fit prompt", "product_id", source.ID, "kept", len(lines), "offered", len(candidates))
	}
	return prompt
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func formatPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func formatAttributes(attrs map[string]any) string {
	if len(attrs) == 0 {
		return "None"
	}
	b, err := json.MarshalIndent(attrs, "", "  ")
	if err != nil {
		return "None"
	}
	return string(b)
}
