package graph

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

// MaxReasoningLength caps the stored reasoning text, in characters.
const MaxReasoningLength = 500

// DropReason says why the normalizer discarded a judgment.
type DropReason string

const (
	DropUnknownTarget  DropReason = "unknown_target"
	DropUnknownType    DropReason = "unknown_type"
	DropStructuralType DropReason = "structural_type"
	DropSelfReference  DropReason = "self_reference"
	DropDuplicate      DropReason = "duplicate"
	DropInvalidScore   DropReason = "invalid_score"
)

// Dropped records a discarded judgment and its position in the input.
type Dropped struct {
	Index    int
	Judgment common.Judgment
	Reason   DropReason
}

// NormalizeResult is the clean edge set of one product plus an account of
// everything that was changed on the way.
type NormalizeResult struct {
	Edges   []Edge
	Dropped []Dropped
	Clamped int
}

// Normalize turns untrusted judgments about source into edges that satisfy
// the store's invariants. Targets are resolved by id first and by SKU
// otherwise. Judgments that cannot be repaired are dropped and reported,
// never returned as an error. When the same (target, type) pair occurs more
// than once the highest score wins; on a tie the earliest judgment wins.
func Normalize(source common.Product, judgments []common.Judgment, products ProductResolver) NormalizeResult {
	var res NormalizeResult
	index := make(map[edgeKey]int, len(judgments))

	drop := func(i int, j common.Judgment, reason DropReason) {
		res.Dropped = append(res.Dropped, Dropped{Index: i, Judgment: j, Reason: reason})
		metrics.JudgmentsDropped.WithLabelValues(string(reason)).Inc()
		logger.Warn("[Normalize] Dropping judgment",
			"product_id", source.ID,
			"target_id", j.TargetProductID,
			"target_sku", j.TargetSKU,
			"type", j.RelationshipType,
			"reason", reason,
		)
	}

	for i, j := range judgments {
		typ, ok := common.ParseRelationType(j.RelationshipType)
		if !ok {
			drop(i, j, DropUnknownType)
			continue
		}
		if !typ.IsSimilarity() {
			drop(i, j, DropStructuralType)
			continue
		}

		target, ok := resolveTarget(j, products)
		if !ok {
			drop(i, j, DropUnknownTarget)
			continue
		}
		if target.ID == source.ID {
			drop(i, j, DropSelfReference)
			continue
		}

		if math.IsNaN(j.SimilarityScore) {
			drop(i, j, DropInvalidScore)
			continue
		}
		score := min(max(j.SimilarityScore, 0), 1)
		if score != j.SimilarityScore {
			res.Clamped++
			metrics.JudgmentsClamped.Inc()
		}

		e := NewProductEdge(source.ID, target.ID, typ, score, cleanReasoning(j.Reasoning))
		if prev, dup := index[e.key()]; dup {
			if e.Score > res.Edges[prev].Score {
				drop(i, judgmentOf(res.Edges[prev]), DropDuplicate)
				res.Edges[prev] = e
			} else {
				drop(i, j, DropDuplicate)
			}
			continue
		}
		index[e.key()] = len(res.Edges)
		res.Edges = append(res.Edges, e)
	}

	return res
}

func resolveTarget(j common.Judgment, products ProductResolver) (common.Product, bool) {
	if j.TargetProductID > 0 {
		return products.ProductByID(j.TargetProductID)
	}
	sku := strings.TrimSpace(j.TargetSKU)
	if sku == "" {
		return common.Product{}, false
	}
	return products.ProductBySKU(sku)
}

// judgmentOf reconstructs the judgment an edge was built from, for reporting.
func judgmentOf(e Edge) common.Judgment {
	id, _ := e.Target.ProductID()
	return common.Judgment{
		TargetProductID:  id,
		RelationshipType: string(e.Type),
		SimilarityScore:  e.Score,
		Reasoning:        e.Reasoning,
	}
}

func cleanReasoning(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxReasoningLength {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:MaxReasoningLength]))
}
