package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/aeo-platform/aeo/backend/internal/metrics"
	"github.com/aeo-platform/aeo/backend/pkg/common"
	"github.com/aeo-platform/aeo/backend/pkg/logger"
)

var (
	ErrNotFound    = errors.New("graph: node not found")
	ErrInvalidEdge = errors.New("graph: invalid edge")
)

// Persister writes the replacement edge set of one product to durable
// storage. It is called before the in-memory state changes; an error
// leaves the Store untouched.
type Persister interface {
	ReplaceProductEdges(ctx context.Context, sourceID int64, relationships []common.Relationship) error
}

// ProductResolver looks up catalog products by id or SKU.
type ProductResolver interface {
	ProductByID(id int64) (common.Product, bool)
	ProductBySKU(sku string) (common.Product, bool)
}

// Snapshot is the durable state a Store can be rebuilt from.
type Snapshot struct {
	Products      []common.Product
	Relationships []common.Relationship
	// Analyzed lists products whose relationships were analyzed, including
	// those for which the analysis produced no edges.
	Analyzed []int64
}

// Store owns the product graph: product, category and brand nodes plus
// directed, typed edges between them. All mutation of product-originated
// edges goes through UpsertEdges, which serializes writers per product.
//
// A Store should be created using New.
type Store struct {
	mu       sync.RWMutex
	nodes    map[NodeID]Node
	order    []NodeID
	out      map[NodeID][]Edge
	in       map[NodeID]map[NodeID]int
	skus     map[string]int64
	analyzed map[int64]bool
	seq      uint64

	locks     keyedMutex
	persister Persister
}

// Option configures a Store.
type Option func(*Store)

// WithPersister makes UpsertEdges write through to p.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{}
	s.reset()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) reset() {
	s.nodes = make(map[NodeID]Node)
	s.order = nil
	s.out = make(map[NodeID][]Edge)
	s.in = make(map[NodeID]map[NodeID]int)
	s.skus = make(map[string]int64)
	s.analyzed = make(map[int64]bool)
	s.seq = 0
}

// PutProduct registers or refreshes a product node and re-derives its
// BELONGS_TO and MADE_BY edges. Similarity edges are left untouched.
func (s *Store) PutProduct(p common.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putProductLocked(p)
	s.recordMetricsLocked()
}

func (s *Store) putProductLocked(p common.Product) {
	id := ProductNodeID(p.ID)
	if prev, ok := s.nodes[id].(ProductNode); ok && prev.Product.SKU != p.SKU {
		delete(s.skus, prev.Product.SKU)
	}
	s.ensureNodeLocked(ProductNode{Product: p})
	if p.SKU != "" {
		s.skus[p.SKU] = p.ID
	}
	s.deriveStructuralLocked(p)
}

// ensureNodeLocked inserts n if absent and refreshes the stored value
// otherwise. Re-adding a node never changes its position or its edges.
func (s *Store) ensureNodeLocked(n Node) {
	id := n.ID()
	if _, ok := s.nodes[id]; !ok {
		s.order = append(s.order, id)
	}
	s.nodes[id] = n
}

func (s *Store) deriveStructuralLocked(p common.Product) {
	src := ProductNodeID(p.ID)
	kept := make([]Edge, 0, len(s.out[src]))
	var retracted []NodeID
	for _, e := range s.out[src] {
		if e.Type.IsStructural() {
			retracted = append(retracted, e.Target)
			continue
		}
		kept = append(kept, e)
	}
	for _, t := range retracted {
		s.decInLocked(t, src)
	}
	s.out[src] = kept

	if p.Category != "" {
		cat := CategoryNode{Name: p.Category}
		s.ensureNodeLocked(cat)
		s.addEdgeLocked(Edge{Source: src, Target: cat.ID(), Type: common.RelationBelongsTo, Score: 1.0})
	}
	if p.Brand != "" {
		brand := BrandNode{Name: p.Brand}
		s.ensureNodeLocked(brand)
		s.addEdgeLocked(Edge{Source: src, Target: brand.ID(), Type: common.RelationMadeBy, Score: 1.0})
	}

	for _, t := range retracted {
		s.pruneAnchorLocked(t)
	}
}

func (s *Store) addEdgeLocked(e Edge) {
	s.seq++
	e.seq = s.seq
	s.out[e.Source] = append(s.out[e.Source], e)
	if s.in[e.Target] == nil {
		s.in[e.Target] = make(map[NodeID]int)
	}
	s.in[e.Target][e.Source]++
}

func (s *Store) decInLocked(target, source NodeID) {
	refs := s.in[target]
	if refs == nil {
		return
	}
	refs[source]--
	if refs[source] <= 0 {
		delete(refs, source)
	}
	if len(refs) == 0 {
		delete(s.in, target)
	}
}

// pruneAnchorLocked removes a category or brand node no product points at.
func (s *Store) pruneAnchorLocked(id NodeID) {
	if id.Kind == KindProduct || len(s.in[id]) > 0 {
		return
	}
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	s.order = slices.DeleteFunc(s.order, func(n NodeID) bool { return n == id })
}

// Product returns the node of product id.
func (s *Store) Product(id int64) (ProductNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[ProductNodeID(id)].(ProductNode)
	if !ok {
		return ProductNode{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return n, nil
}

func (s *Store) ProductByID(id int64) (common.Product, bool) {
	n, err := s.Product(id)
	if err != nil {
		return common.Product{}, false
	}
	return n.Product, true
}

func (s *Store) ProductBySKU(sku string) (common.Product, bool) {
	s.mu.RLock()
	id, ok := s.skus[sku]
	s.mu.RUnlock()
	if !ok {
		return common.Product{}, false
	}
	return s.ProductByID(id)
}

// Products returns every product in the store ordered by id.
func (s *Store) Products() []common.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]common.Product, 0, len(s.nodes))
	for _, id := range s.order {
		if n, ok := s.nodes[id].(ProductNode); ok {
			products = append(products, n.Product)
		}
	}
	slices.SortFunc(products, func(a, b common.Product) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return products
}

// Node returns the node with the given id.
func (s *Store) Node(id NodeID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return n, nil
}

// Neighbors returns the outgoing edges of id in insertion order,
// restricted to the given types when any are passed.
func (s *Store) Neighbors(id NodeID, types ...common.RelationType) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}

	edges := make([]Edge, 0, len(s.out[id]))
	for _, e := range s.out[id] {
		if len(types) > 0 && !slices.Contains(types, e.Type) {
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// Analyzed reports whether relationships of product id were analyzed.
func (s *Store) Analyzed(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzed[id]
}

// Counts returns the number of nodes and edges.
func (s *Store) Counts() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), s.edgeCountLocked()
}

func (s *Store) edgeCountLocked() int {
	n := 0
	for _, edges := range s.out {
		n += len(edges)
	}
	return n
}

// UpsertEdges replaces every product-originated edge of sourceID with
// edges and re-derives its structural edges. The whole set is validated
// first: an invalid or duplicate edge rejects the call without changes.
// Calls for the same product are serialized; calls for different products
// run concurrently. It returns the number of edges stored.
func (s *Store) UpsertEdges(ctx context.Context, sourceID int64, edges []Edge) (int, error) {
	unlock := s.locks.lock(sourceID)
	defer unlock()

	s.mu.RLock()
	err := s.validateLocked(sourceID, edges)
	s.mu.RUnlock()
	if err != nil {
		return 0, err
	}

	if s.persister != nil {
		relationships := make([]common.Relationship, 0, len(edges))
		for _, e := range edges {
			r, _ := e.Relationship()
			relationships = append(relationships, r)
		}
		if err := s.persister.ReplaceProductEdges(ctx, sourceID, relationships); err != nil {
			return 0, fmt.Errorf("failed to persist edges of product %d: %w", sourceID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Restore may have swapped the graph while the persister ran.
	if err := s.validateLocked(sourceID, edges); err != nil {
		return 0, err
	}
	s.replaceLocked(sourceID, edges)
	s.recordMetricsLocked()

	return len(edges), nil
}

func (s *Store) validateLocked(sourceID int64, edges []Edge) error {
	src := ProductNodeID(sourceID)
	if _, ok := s.nodes[src].(ProductNode); !ok {
		return fmt.Errorf("product %d: %w", sourceID, ErrNotFound)
	}

	seen := make(map[edgeKey]struct{}, len(edges))
	for i, e := range edges {
		switch {
		case e.Source != src:
			return fmt.Errorf("edge %d: source %s is not product %d: %w", i, e.Source, sourceID, ErrInvalidEdge)
		case !e.Type.IsSimilarity():
			return fmt.Errorf("edge %d: type %q: %w", i, e.Type, ErrInvalidEdge)
		case e.Target == src:
			return fmt.Errorf("edge %d: self reference: %w", i, ErrInvalidEdge)
		case math.IsNaN(e.Score) || e.Score < 0 || e.Score > 1:
			return fmt.Errorf("edge %d: score %v out of range: %w", i, e.Score, ErrInvalidEdge)
		}
		if _, ok := s.nodes[e.Target].(ProductNode); !ok {
			return fmt.Errorf("edge %d: target %s: %w", i, e.Target, ErrInvalidEdge)
		}
		if _, dup := seen[e.key()]; dup {
			return fmt.Errorf("edge %d: duplicate (%s, %s): %w", i, e.Target, e.Type, ErrInvalidEdge)
		}
		seen[e.key()] = struct{}{}
	}
	return nil
}

func (s *Store) replaceLocked(sourceID int64, edges []Edge) {
	src := ProductNodeID(sourceID)
	for _, e := range s.out[src] {
		s.decInLocked(e.Target, src)
	}
	s.out[src] = nil

	for _, e := range edges {
		s.addEdgeLocked(e)
	}
	if n, ok := s.nodes[src].(ProductNode); ok {
		s.deriveStructuralLocked(n.Product)
	}
	s.analyzed[sourceID] = true
}

// Restore discards the current graph and rebuilds it from snap.
// Relationships that do not satisfy the edge invariants are skipped.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, p := range snap.Products {
		s.putProductLocked(p)
	}

	bySource := make(map[int64][]Edge)
	var sources []int64
	for _, r := range snap.Relationships {
		if _, ok := bySource[r.SourceID]; !ok {
			sources = append(sources, r.SourceID)
		}
		bySource[r.SourceID] = append(bySource[r.SourceID], EdgeFromRelationship(r))
	}
	for _, id := range sources {
		edges := bySource[id]
		if err := s.validateLocked(id, edges); err != nil {
			logger.Warn("[Graph] Skipping stored relationships", "product_id", id, "err", err)
			continue
		}
		s.replaceLocked(id, edges)
	}
	for _, id := range snap.Analyzed {
		if _, ok := s.nodes[ProductNodeID(id)]; ok {
			s.analyzed[id] = true
		}
	}

	s.recordMetricsLocked()
	logger.Info("[Graph] Restored", "nodes", len(s.nodes), "edges", s.edgeCountLocked())
}

func (s *Store) recordMetricsLocked() {
	counts := map[NodeKind]int{KindProduct: 0, KindCategory: 0, KindBrand: 0}
	for id := range s.nodes {
		counts[id.Kind]++
	}
	for kind, n := range counts {
		metrics.GraphNodeCount.WithLabelValues(kind.String()).Set(float64(n))
	}
	metrics.GraphEdgeCount.Set(float64(s.edgeCountLocked()))
}

// keyedMutex hands out one mutex per product id and forgets it once no
// goroutine holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id int64) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
