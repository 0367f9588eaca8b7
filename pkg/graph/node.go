package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aeo-platform/aeo/backend/pkg/common"
)

// NodeKind tags the variant of a graph node.
type NodeKind uint8

const (
	KindProduct NodeKind = iota + 1
	KindCategory
	KindBrand
)

func (k NodeKind) String() string {
	switch k {
	case KindProduct:
		return "product"
	case KindCategory:
		return "category"
	case KindBrand:
		return "brand"
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

const (
	categoryPrefix = "category_"
	brandPrefix    = "brand_"
)

// NodeID identifies a node by its variant and key. Two references with the
// same kind and key are the same node.
type NodeID struct {
	Kind NodeKind
	Key  string
}

// ProductNodeID returns the id of the node for product id.
func ProductNodeID(id int64) NodeID {
	return NodeID{Kind: KindProduct, Key: strconv.FormatInt(id, 10)}
}

// CategoryNodeID returns the id of the anchor node for a category name.
func CategoryNodeID(name string) NodeID {
	return NodeID{Kind: KindCategory, Key: name}
}

// BrandNodeID returns the id of the anchor node for a brand name.
func BrandNodeID(name string) NodeID {
	return NodeID{Kind: KindBrand, Key: name}
}

// String renders the external form used by API payloads: the bare id for
// products, "category_<name>" and "brand_<name>" for anchors.
func (n NodeID) String() string {
	switch n.Kind {
	case KindProduct:
		return n.Key
	case KindCategory:
		return categoryPrefix + n.Key
	case KindBrand:
		return brandPrefix + n.Key
	}
	return n.Key
}

// ProductID returns the product id of a product node.
func (n NodeID) ProductID() (int64, bool) {
	if n.Kind != KindProduct {
		return 0, false
	}
	id, err := strconv.ParseInt(n.Key, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ParseNodeID is the inverse of NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	switch {
	case strings.HasPrefix(s, categoryPrefix) && len(s) > len(categoryPrefix):
		return CategoryNodeID(strings.TrimPrefix(s, categoryPrefix)), nil
	case strings.HasPrefix(s, brandPrefix) && len(s) > len(brandPrefix):
		return BrandNodeID(strings.TrimPrefix(s, brandPrefix)), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return NodeID{}, fmt.Errorf("invalid node id %q", s)
	}
	return ProductNodeID(id), nil
}

// Node is a closed union of ProductNode, CategoryNode and BrandNode.
type Node interface {
	ID() NodeID
	Label() string
	Group() string
	isNode()
}

// ProductNode carries a snapshot of the product it represents.
type ProductNode struct {
	Product common.Product
}

func (n ProductNode) ID() NodeID    { return ProductNodeID(n.Product.ID) }
func (n ProductNode) Label() string { return n.Product.DisplayTitle() }
func (n ProductNode) Group() string {
	if n.Product.Category == "" {
		return "Unknown"
	}
	return n.Product.Category
}
func (ProductNode) isNode() {}

// CategoryNode anchors all products of one category.
type CategoryNode struct {
	Name string
}

func (n CategoryNode) ID() NodeID    { return CategoryNodeID(n.Name) }
func (n CategoryNode) Label() string { return n.Name }
func (CategoryNode) Group() string   { return "Category" }
func (CategoryNode) isNode()         {}

// BrandNode anchors all products of one brand.
type BrandNode struct {
	Name string
}

func (n BrandNode) ID() NodeID    { return BrandNodeID(n.Name) }
func (n BrandNode) Label() string { return n.Name }
func (BrandNode) Group() string   { return "Brand" }
func (BrandNode) isNode()         {}
