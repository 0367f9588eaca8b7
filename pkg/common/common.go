package common

import (
	"strings"
	"time"
)

// Product is a raw catalog record as ingested. The core never mutates it
// after creation; enrichment lives in a separate record.
type Product struct {
	ID          int64          `json:"id"`
	SKU         string         `json:"sku"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Brand       string         `json:"brand"`
	Price       *float64       `json:"price,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`

	// EnrichedTitle is the title of the latest enrichment, if any. It is
	// only used for display and never for scoring.
	EnrichedTitle string `json:"enriched_title,omitempty"`
}

// DisplayTitle returns the enriched title when present and the raw title otherwise.
func (p Product) DisplayTitle() string {
	if strings.TrimSpace(p.EnrichedTitle) != "" {
		return p.EnrichedTitle
	}
	return p.Title
}

// KeyAttribute is one structured name/value pair of an enrichment.
type KeyAttribute struct {
	Name  string `json:"name" jsonschema_description:"Attribute name, e.g. Material"`
	Value string `json:"value" jsonschema_description:"Attribute value, e.g. Stainless steel"`
}

// FAQ is a single question/answer pair of an enrichment.
type FAQ struct {
	Question string `json:"question" jsonschema_description:"A question a shopper would ask an answer engine"`
	Answer   string `json:"answer" jsonschema_description:"Detailed answer of 50-100 words"`
}

// Enrichment is the AI generated elaboration of exactly one product.
// A newer enrichment for the same product supersedes the older one.
type Enrichment struct {
	ID              int64          `json:"id,omitempty" jsonschema:"-"`
	ProductID       int64          `json:"product_id,omitempty" jsonschema:"-"`
	EnrichedTitle   string         `json:"enriched_title" jsonschema_description:"A 45-60 character keyword-rich, benefit-focused title"`
	LongDescription string         `json:"long_description" jsonschema_description:"A 150-200 word semantic description with keywords, benefits, features and use cases"`
	KeyAttributes   []KeyAttribute `json:"key_attributes" jsonschema_description:"5-7 structured attributes"`
	FAQs            []FAQ          `json:"faqs" jsonschema_description:"3-5 questions with detailed answers"`
	SemanticTags    []string       `json:"semantic_tags" jsonschema_description:"5-8 relevant tags for semantic search"`
	UseCases        []string       `json:"use_cases" jsonschema_description:"3-4 specific usage scenarios"`
	AEOScore        int            `json:"aeo_score" jsonschema:"-"`
	CreatedAt       time.Time      `json:"created_at,omitzero" jsonschema:"-"`
}

// ProductWithEnrichment pairs a product with its latest enrichment, if any.
type ProductWithEnrichment struct {
	Product    Product     `json:"product"`
	Enrichment *Enrichment `json:"enrichment,omitempty"`
}

// EnrichmentUsage records the model cost of producing one enrichment.
type EnrichmentUsage struct {
	Kind       string `json:"enrichment_type"`
	Prompt     string `json:"prompt_used"`
	TokensUsed int    `json:"tokens_used"`
}

// RelationType is the closed set of edge types in the product graph.
type RelationType string

const (
	RelationSimilarTo     RelationType = "SIMILAR_TO"
	RelationComplements   RelationType = "COMPLEMENTS"
	RelationAlternativeTo RelationType = "ALTERNATIVE_TO"
	RelationBelongsTo     RelationType = "BELONGS_TO"
	RelationMadeBy        RelationType = "MADE_BY"
)

// SimilarityRelations are the types a reasoning collaborator may propose.
var SimilarityRelations = []RelationType{
	RelationSimilarTo,
	RelationComplements,
	RelationAlternativeTo,
}

// ParseRelationType maps free text to a known relation type. Case and
// surrounding whitespace are ignored, as are spaces or dashes used
// instead of underscores.
func ParseRelationType(s string) (RelationType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch t := RelationType(s); t {
	case RelationSimilarTo, RelationComplements, RelationAlternativeTo, RelationBelongsTo, RelationMadeBy:
		return t, true
	}
	return "", false
}

// IsSimilarity reports whether t carries a meaningful confidence score.
func (t RelationType) IsSimilarity() bool {
	switch t {
	case RelationSimilarTo, RelationComplements, RelationAlternativeTo:
		return true
	}
	return false
}

// IsStructural reports whether t is derived from product fields.
func (t RelationType) IsStructural() bool {
	return t == RelationBelongsTo || t == RelationMadeBy
}

// Relationship is a directed product-to-product edge as persisted.
type Relationship struct {
	SourceID  int64        `json:"source_product_id"`
	TargetID  int64        `json:"target_product_id"`
	Type      RelationType `json:"relationship_type"`
	Score     float64      `json:"similarity_score"`
	Reasoning string       `json:"reasoning"`
}

// Judgment is an untrusted relationship proposal returned by the
// reasoning collaborator. Targets are referenced either by product id or
// by SKU; a positive id wins.
type Judgment struct {
	TargetProductID  int64   `json:"target_product_id" jsonschema_description:"ID of the related product from the catalog list, 0 if only the SKU is known"`
	TargetSKU        string  `json:"target_sku" jsonschema_description:"SKU of the related product, empty if unknown"`
	RelationshipType string  `json:"relationship_type" jsonschema_description:"One of SIMILAR_TO, COMPLEMENTS, ALTERNATIVE_TO"`
	SimilarityScore  float64 `json:"similarity_score" jsonschema_description:"Confidence between 0.0 and 1.0"`
	Reasoning        string  `json:"reasoning" jsonschema_description:"Short explanation of the relationship"`
}
