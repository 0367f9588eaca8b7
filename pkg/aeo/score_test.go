package aeo

import (
	"errors"
	"strings"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

func words(n int, first string) string {
	if n == 0 {
		return ""
	}
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	if first != "" {
		w[0] = first
	}
	return strings.Join(w, " ")
}

func attrs(n int) []common.KeyAttribute {
	out := make([]common.KeyAttribute, n)
	for i := range out {
		out[i] = common.KeyAttribute{Name: "name", Value: "value"}
	}
	return out
}

func faqs(n int) []common.FAQ {
	return make([]common.FAQ, n)
}

func strs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "s"
	}
	return out
}

func TestScore_NoEnrichment(t *testing.T) {
	_, err := Score(common.Product{}, nil)
	if !errors.Is(err, ErrNoEnrichment) {
		t.Fatalf("expected ErrNoEnrichment, got %v", err)
	}
}

func TestScore_TitleBuckets(t *testing.T) {
	tests := []struct {
		length int
		want   int
	}{
		{0, 10},
		{10, 10},
		{39, 10},
		{40, 15},
		{44, 15},
		{45, 20},
		{52, 20},
		{60, 20},
		{61, 15},
		{70, 15},
		{71, 10},
		{200, 10},
	}

	for _, tt := range tests {
		got, _ := scoreTitle(strings.Repeat("a", tt.length))
		if got != tt.want {
			t.Fatalf("title length %d: expected %d, got %d", tt.length, tt.want, got)
		}
	}
}

func TestScore_TitleCountsCharactersNotBytes(t *testing.T) {
	title := strings.Repeat("é", 45)
	got, _ := scoreTitle(title)
	if got != 20 {
		t.Fatalf("expected 20 for 45 multi-byte characters, got %d", got)
	}
}

func TestScore_AttributeBuckets(t *testing.T) {
	tests := []struct {
		count int
		want  int
		label string
	}{
		{0, 5, "poor"},
		{2, 5, "poor"},
		{3, 10, "acceptable"},
		{4, 10, "acceptable"},
		{5, 15, "good"},
		{6, 15, "good"},
		{7, 20, "excellent"},
		{12, 20, "excellent"},
	}

	for _, tt := range tests {
		got, rationale := scoreAttributes(tt.count)
		if got != tt.want {
			t.Fatalf("%d attributes: expected %d, got %d", tt.count, tt.want, got)
		}
		if !strings.Contains(rationale, tt.label) {
			t.Fatalf("%d attributes: expected rationale to contain %q, got %q", tt.count, tt.label, rationale)
		}
	}
}

func TestScore_SemanticRichness(t *testing.T) {
	tests := []struct {
		name  string
		words int
		faqs  int
		want  int
	}{
		{"empty", 0, 0, 5},
		{"optimal description, no faqs", 150, 0, 10},
		{"optimal upper bound", 200, 5, 20},
		{"short acceptable", 120, 1, 12},
		{"long acceptable", 250, 3, 14},
		{"too long", 251, 4, 12},
		{"too short", 119, 2, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := scoreSemantic(words(tt.words, ""), tt.faqs)
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestScore_StructuredDataSaturates(t *testing.T) {
	tests := []struct {
		tags, useCases, want int
	}{
		{0, 0, 0},
		{1, 1, 3},
		{5, 10, 20},
		{8, 3, 13},
		{30, 30, 20},
	}

	for _, tt := range tests {
		got, _ := scoreStructured(tt.tags, tt.useCases)
		if got != tt.want {
			t.Fatalf("%d tags, %d use cases: expected %d, got %d", tt.tags, tt.useCases, tt.want, got)
		}
	}
}

func TestScore_Consistency(t *testing.T) {
	tests := []struct {
		name    string
		product common.Product
		title   string
		desc    string
		want    int
	}{
		{"all aligned", common.Product{Brand: "Acme", Category: "Audio"}, "ACME speaker", "great audio gear", 20},
		{"brand missing", common.Product{Brand: "Acme", Category: "Audio"}, "Speaker", "great audio gear", 15},
		{"category missing", common.Product{Brand: "Acme", Category: "Audio"}, "acme speaker", "great gear", 15},
		{"both missing", common.Product{Brand: "Acme", Category: "Audio"}, "Speaker", "great gear", 10},
		{"empty brand and category", common.Product{}, "Speaker", "great gear", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rationale := scoreConsistency(tt.product, &common.Enrichment{EnrichedTitle: tt.title, LongDescription: tt.desc})
			if got != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, got, rationale)
			}
			if rationale == "" {
				t.Fatal("expected a rationale")
			}
		})
	}
}

func TestScore_EndToEnd(t *testing.T) {
	product := common.Product{Brand: "Acme", Category: "Audio"}
	enrichment := &common.Enrichment{
		EnrichedTitle:   "Acme " + strings.Repeat("x", 45),
		LongDescription: words(180, "audio"),
		KeyAttributes:   attrs(6),
		FAQs:            faqs(4),
		SemanticTags:    strs(8),
		UseCases:        strs(3),
	}

	b, err := Score(product, enrichment)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if b.TitleOptimization != 20 || b.AttributeCompleteness != 15 || b.SemanticRichness != 17 ||
		b.StructuredData != 13 || b.Consistency != 20 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.Total != 85 {
		t.Fatalf("expected total 85, got %d", b.Total)
	}
}

func TestScore_BoundsAndPurity(t *testing.T) {
	product := common.Product{Brand: "Zed", Category: "Garden"}
	for _, n := range []int{0, 1, 3, 5, 7, 10, 40} {
		e := &common.Enrichment{
			EnrichedTitle:   strings.Repeat("t", n*3),
			LongDescription: words(n*20, ""),
			KeyAttributes:   attrs(n),
			FAQs:            faqs(n),
			SemanticTags:    strs(n),
			UseCases:        strs(n),
		}

		first, err := Score(product, e)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		second, _ := Score(product, e)
		if first != second {
			t.Fatalf("score is not deterministic: %+v vs %+v", first, second)
		}

		if first.Total < 0 || first.Total > MaxScore {
			t.Fatalf("total out of range: %d", first.Total)
		}
		for _, c := range []int{first.TitleOptimization, first.AttributeCompleteness, first.SemanticRichness, first.StructuredData, first.Consistency} {
			if c < 0 || c > ComponentMax {
				t.Fatalf("component out of range: %+v", first)
			}
		}
	}
}
