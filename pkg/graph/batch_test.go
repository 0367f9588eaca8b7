package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/google/go-cmp/cmp"
)

// fakeReasoner proposes SIMILAR_TO for the first candidate and COMPLEMENTS
// for the second, which makes its answers a pure function of the catalog.
type fakeReasoner struct {
	mu    sync.Mutex
	calls map[int64]int
	fail  map[int64]error
	extra []common.Judgment
}

func (f *fakeReasoner) ProposeRelationships(_ context.Context, source common.Product, candidates []common.Product) ([]common.Judgment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[int64]int)
	}
	f.calls[source.ID]++
	if err := f.fail[source.ID]; err != nil {
		return nil, err
	}

	var out []common.Judgment
	if len(candidates) > 0 {
		out = append(out, common.Judgment{TargetProductID: candidates[0].ID, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.8})
	}
	if len(candidates) > 1 {
		out = append(out, common.Judgment{TargetSKU: candidates[1].SKU, RelationshipType: "COMPLEMENTS", SimilarityScore: 0.6})
	}
	return append(out, f.extra...), nil
}

func (f *fakeReasoner) callCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func catalog(n int) []common.Product {
	out := make([]common.Product, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, product(int64(i), "Audio", "Acme"))
	}
	return out
}

func newTestOrchestrator(t *testing.T, s *Store, r RelationshipReasoner, workers int) *Orchestrator {
	t.Helper()
	a, err := NewAnalyzer(NewAnalyzerParams{Store: s, Reasoner: r, MaxRetries: 1})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	o, err := NewOrchestrator(NewOrchestratorParams{Analyzer: a, Workers: workers})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	return o
}

func TestAnalyzeProduct(t *testing.T) {
	s := newTestStore(nil, catalog(3)...)
	r := &fakeReasoner{extra: []common.Judgment{
		{TargetProductID: 99, RelationshipType: "SIMILAR_TO", SimilarityScore: 0.9},
		{TargetProductID: 2, RelationshipType: "UNKNOWN", SimilarityScore: 0.9},
	}}
	a, err := NewAnalyzer(NewAnalyzerParams{Store: s, Reasoner: r})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	n, err := a.AnalyzeProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 relationships, got %d", n)
	}
	got := targets(t, s, 1, common.SimilarityRelations...)
	if diff := cmp.Diff([]string{"SIMILAR_TO:2", "COMPLEMENTS:3"}, got); diff != "" {
		t.Fatalf("edges mismatch (-want +got):\n%s", diff)
	}

	if _, err := a.AnalyzeProduct(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyzeProduct_RetriesAndFails(t *testing.T) {
	s := newTestStore(nil, catalog(2)...)
	r := &fakeReasoner{fail: map[int64]error{1: errors.New("model unavailable")}}
	a, _ := NewAnalyzer(NewAnalyzerParams{Store: s, Reasoner: r, MaxRetries: 3})

	if _, err := a.AnalyzeProduct(context.Background(), 1); err == nil {
		t.Fatal("expected error, got nil")
	}
	if got := r.callCount(1); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if s.Analyzed(1) {
		t.Fatal("expected failed product not to be marked analyzed")
	}
}

func TestAnalyzeProduct_NoCandidates(t *testing.T) {
	s := newTestStore(nil, catalog(1)...)
	r := &fakeReasoner{}
	a, _ := NewAnalyzer(NewAnalyzerParams{Store: s, Reasoner: r})

	n, err := a.AnalyzeProduct(context.Background(), 1)
	if err != nil || n != 0 {
		t.Fatalf("expected 0 relationships and nil error, got %d, %v", n, err)
	}
	if r.callCount(1) != 0 {
		t.Fatal("expected the reasoner not to be called without candidates")
	}
	if !s.Analyzed(1) {
		t.Fatal("expected product to be marked analyzed")
	}
}

func TestBatch_FailureDoesNotAbort(t *testing.T) {
	s := newTestStore(nil, catalog(5)...)
	r := &fakeReasoner{fail: map[int64]error{2: errors.New("timeout")}}
	o := newTestOrchestrator(t, s, r, 3)

	var mu sync.Mutex
	var progress []Progress
	res, err := o.Run(context.Background(), BatchOptions{OnProgress: func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := BatchResult{TotalProducts: 5, Processed: 5, Failed: 1, TotalRelationships: 8}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if len(progress) != 5 || progress[4].Processed != 5 || progress[4].Total != 5 {
		t.Fatalf("unexpected progress reports: %+v", progress)
	}
	for _, id := range []int64{1, 3, 4, 5} {
		if !s.Analyzed(id) {
			t.Fatalf("expected product %d to be analyzed", id)
		}
	}
	if s.Analyzed(2) {
		t.Fatal("expected product 2 not to be analyzed")
	}
}

func TestBatch_CancelKeepsCommittedWork(t *testing.T) {
	s := newTestStore(nil, catalog(5)...)
	r := &fakeReasoner{}
	o := newTestOrchestrator(t, s, r, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := o.Run(ctx, BatchOptions{OnProgress: func(p Progress) {
		if p.Processed == 3 {
			cancel()
		}
	}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Processed != 3 {
		t.Fatalf("expected 3 processed products, got %+v", res)
	}
	for id := int64(1); id <= 5; id++ {
		if s.Analyzed(id) != (id <= 3) {
			t.Fatalf("product %d: expected analyzed=%v", id, id <= 3)
		}
	}
	if got := targets(t, s, 4, common.SimilarityRelations...); len(got) != 0 {
		t.Fatalf("expected product 4 untouched, got %v", got)
	}

	resumed, err := o.Run(context.Background(), BatchOptions{OnlyUnanalyzed: true})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resumed.Skipped != 3 || resumed.Processed != 2 {
		t.Fatalf("expected 3 skipped and 2 processed, got %+v", resumed)
	}
}

func TestBatch_RerunMatchesUninterruptedRun(t *testing.T) {
	reference := newTestStore(nil, catalog(5)...)
	if _, err := newTestOrchestrator(t, reference, &fakeReasoner{}, 2).Run(context.Background(), BatchOptions{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	s := newTestStore(nil, catalog(5)...)
	o := newTestOrchestrator(t, s, &fakeReasoner{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = o.Run(ctx, BatchOptions{OnProgress: func(p Progress) {
		if p.Processed == 3 {
			cancel()
		}
	}})
	cancel()

	if _, err := o.Run(context.Background(), BatchOptions{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if diff := cmp.Diff(reference.FullGraph(), s.FullGraph()); diff != "" {
		t.Fatalf("graph mismatch (-want +got):\n%s", diff)
	}
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []int64
}

func (l *recordingLocker) WithLock(ctx context.Context, productID int64, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, productID)
	l.mu.Unlock()
	return fn(ctx)
}

func TestBatch_UsesLocker(t *testing.T) {
	s := newTestStore(nil, catalog(2)...)
	a, _ := NewAnalyzer(NewAnalyzerParams{Store: s, Reasoner: &fakeReasoner{}})
	l := &recordingLocker{}
	o, _ := NewOrchestrator(NewOrchestratorParams{Analyzer: a, Locker: l, RatePerSecond: 100})

	if _, err := o.Run(context.Background(), BatchOptions{ProductIDs: []int64{2}}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if diff := cmp.Diff([]int64{2}, l.keys); diff != "" {
		t.Fatalf("locked keys mismatch (-want +got):\n%s", diff)
	}
}
