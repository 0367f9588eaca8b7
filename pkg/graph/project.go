package graph

import (
	"fmt"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// DefaultProjectionHops is the radius of the neighbourhood served to the UI.
const DefaultProjectionHops = 2

// ProjectedNode is the visualization form of a node.
type ProjectedNode struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Group    string   `json:"group"`
	SKU      string   `json:"sku,omitempty"`
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

// ProjectedEdge is the visualization form of an edge.
type ProjectedEdge struct {
	Source    string              `json:"source"`
	Target    string              `json:"target"`
	Type      common.RelationType `json:"type"`
	Score     float64             `json:"score"`
	Reasoning string              `json:"reasoning,omitempty"`
}

// Stats summarizes the size of a projection.
type Stats struct {
	TotalNodes int     `json:"total_nodes"`
	TotalEdges int     `json:"total_edges"`
	Density    float64 `json:"density"`
}

// Projection is a node/edge view of the graph or a part of it.
type Projection struct {
	Nodes []ProjectedNode `json:"nodes"`
	Edges []ProjectedEdge `json:"edges"`
	Stats *Stats          `json:"stats,omitempty"`
}

// Project returns the subgraph induced by every node within maxHops of id.
// Reachability ignores edge direction. Every edge between two included
// nodes is part of the result, whether or not it was traversed.
func (s *Store) Project(id NodeID, maxHops int) (Projection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[id]; !ok {
		return Projection{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}

	visited := map[NodeID]struct{}{id: {}}
	frontier := []NodeID{id}
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []NodeID
		for _, n := range frontier {
			for _, m := range s.undirectedNeighborsLocked(n) {
				if _, seen := visited[m]; seen {
					continue
				}
				visited[m] = struct{}{}
				next = append(next, m)
			}
		}
		frontier = next
	}

	return s.projectLocked(func(n NodeID) bool {
		_, ok := visited[n]
		return ok
	}), nil
}

// FullGraph returns every node and edge along with size statistics.
func (s *Store) FullGraph() Projection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := s.projectLocked(func(NodeID) bool { return true })
	p.Stats = &Stats{
		TotalNodes: len(p.Nodes),
		TotalEdges: len(p.Edges),
		Density:    density(len(p.Nodes), len(p.Edges)),
	}
	return p
}

func density(nodes, edges int) float64 {
	if nodes < 2 {
		return 0
	}
	return float64(edges) / float64(nodes*(nodes-1))
}

func (s *Store) undirectedNeighborsLocked(n NodeID) []NodeID {
	out := make([]NodeID, 0, len(s.out[n])+len(s.in[n]))
	for _, e := range s.out[n] {
		out = append(out, e.Target)
	}
	for src := range s.in[n] {
		out = append(out, src)
	}
	return out
}

// projectLocked renders the nodes accepted by include in insertion order
// and, for each of them, its outgoing edges into included nodes.
func (s *Store) projectLocked(include func(NodeID) bool) Projection {
	p := Projection{
		Nodes: []ProjectedNode{},
		Edges: []ProjectedEdge{},
	}
	for _, id := range s.order {
		if !include(id) {
			continue
		}
		p.Nodes = append(p.Nodes, renderNode(s.nodes[id]))
	}
	for _, id := range s.order {
		if !include(id) {
			continue
		}
		for _, e := range s.out[id] {
			if !include(e.Target) {
				continue
			}
			p.Edges = append(p.Edges, ProjectedEdge{
				Source:    e.Source.String(),
				Target:    e.Target.String(),
				Type:      e.Type,
				Score:     e.Score,
				Reasoning: e.Reasoning,
			})
		}
	}
	return p
}

func renderNode(n Node) ProjectedNode {
	pn := ProjectedNode{
		ID:    n.ID().String(),
		Label: n.Label(),
		Type:  n.ID().Kind.String(),
		Group: n.Group(),
	}
	switch n := n.(type) {
	case ProductNode:
		pn.SKU = n.Product.SKU
		pn.Category = n.Product.Category
		pn.Brand = n.Product.Brand
		pn.Price = n.Product.Price
	case CategoryNode, BrandNode:
	default:
		panic(fmt.Sprintf("graph: unhandled node type %T", n))
	}
	return pn
}
