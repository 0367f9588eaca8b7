// Package aeo scores enrichment content for answer-engine optimization.
//
// Score is a pure function of a product and its enrichment: it holds no
// state, performs no I/O and is safe for concurrent use.
package aeo

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// ErrNoEnrichment is returned when a score is requested for a product
// that has not been enriched yet.
var ErrNoEnrichment = errors.New("product has not been enriched yet")

// ComponentMax is the upper bound of each of the five sub-scores.
const ComponentMax = 20

// MaxScore is the upper bound of Breakdown.Total.
const MaxScore = 5 * ComponentMax

// Details carries one human-readable rationale per sub-score.
type Details struct {
	Title       string `json:"title"`
	Attributes  string `json:"attributes"`
	Semantic    string `json:"semantic"`
	Structured  string `json:"structured"`
	Consistency string `json:"consistency"`
}

// Breakdown is the derived AEO score of one enrichment.
type Breakdown struct {
	Total                 int     `json:"total_score"`
	TitleOptimization     int     `json:"title_optimization"`
	AttributeCompleteness int     `json:"attribute_completeness"`
	SemanticRichness      int     `json:"semantic_richness"`
	StructuredData        int     `json:"structured_data"`
	Consistency           int     `json:"consistency"`
	Details               Details `json:"details"`
}

// Score computes the breakdown for product p and enrichment e.
func Score(p common.Product, e *common.Enrichment) (Breakdown, error) {
	if e == nil {
		return Breakdown{}, ErrNoEnrichment
	}

	var b Breakdown
	b.TitleOptimization, b.Details.Title = scoreTitle(e.EnrichedTitle)
	b.AttributeCompleteness, b.Details.Attributes = scoreAttributes(len(e.KeyAttributes))
	b.SemanticRichness, b.Details.Semantic = scoreSemantic(e.LongDescription, len(e.FAQs))
	b.StructuredData, b.Details.Structured = scoreStructured(len(e.SemanticTags), len(e.UseCases))
	b.Consistency, b.Details.Consistency = scoreConsistency(p, e)

	b.Total = b.TitleOptimization +
		b.AttributeCompleteness +
		b.SemanticRichness +
		b.StructuredData +
		b.Consistency

	return b, nil
}

// scoreTitle buckets the title length in characters:
// [45,60] → 20, [40,45) ∪ (60,70] → 15, anything else → 10.
func scoreTitle(title string) (int, string) {
	n := utf8.RuneCountInString(title)
	switch {
	case n >= 45 && n <= 60:
		return 20, fmt.Sprintf("%d characters (optimal length)", n)
	case (n >= 40 && n < 45) || (n > 60 && n <= 70):
		return 15, fmt.Sprintf("%d characters (acceptable length)", n)
	default:
		return 10, fmt.Sprintf("%d characters (suboptimal length)", n)
	}
}

func scoreAttributes(count int) (int, string) {
	switch {
	case count >= 7:
		return 20, fmt.Sprintf("%d attributes (excellent)", count)
	case count >= 5:
		return 15, fmt.Sprintf("%d attributes (good)", count)
	case count >= 3:
		return 10, fmt.Sprintf("%d attributes (acceptable)", count)
	default:
		return 5, fmt.Sprintf("%d attributes (poor)", count)
	}
}

func scoreSemantic(description string, faqCount int) (int, string) {
	words := len(strings.Fields(description))

	var desc int
	switch {
	case words >= 150 && words <= 200:
		desc = 10
	case (words >= 120 && words < 150) || (words > 200 && words <= 250):
		desc = 7
	default:
		desc = 5
	}

	var faq int
	switch {
	case faqCount >= 5:
		faq = 10
	case faqCount >= 3:
		faq = 7
	case faqCount >= 1:
		faq = 5
	}

	return desc + faq, fmt.Sprintf("%d words, %d FAQs", words, faqCount)
}

func scoreStructured(tagCount, useCaseCount int) (int, string) {
	tags := min(10, 2*tagCount)
	useCases := min(10, useCaseCount)
	return tags + useCases, fmt.Sprintf("%d tags, %d use cases", tagCount, useCaseCount)
}

func scoreConsistency(p common.Product, e *common.Enrichment) (int, string) {
	score := ComponentMax
	var issues []string

	brand := strings.ToLower(strings.TrimSpace(p.Brand))
	if brand != "" && !strings.Contains(strings.ToLower(e.EnrichedTitle), brand) {
		score -= 5
		issues = append(issues, "brand missing from enriched title")
	}

	category := strings.ToLower(strings.TrimSpace(p.Category))
	if category != "" && !strings.Contains(strings.ToLower(e.LongDescription), category) {
		score -= 5
		issues = append(issues, "category not mentioned in description")
	}

	if len(issues) == 0 {
		return score, "Excellent alignment"
	}

	msg := strings.Join(issues, ", ")
	return max(score, 0), strings.ToUpper(msg[:1]) + msg[1:]
}
