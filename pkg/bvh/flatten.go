package bvh

import "github.com/df07/go-wgpu-pathtracer/pkg/core"

// NodeKind tells the traversal what a flattened node's Index means.
type NodeKind uint32

const (
	// Escape nodes guard a subtree; Index is where to jump when the ray misses the box.
	Escape NodeKind = 0
	// Object nodes reference a sphere; Index is the sphere's scene index.
	Object NodeKind = 1
)

func (k NodeKind) String() string {
	switch k {
	case Escape:
		return "escape"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Node is one element of the flattened, stackless hierarchy.
type Node struct {
	BBox  core.AABB
	Kind  NodeKind
	Index uint32
}

// Flatten emits the tree in pre-order. Each interior node is written as an
// Escape node whose Index is the array length right after its subtree, so a
// box miss skips the whole subtree. Element 0 is the root.
func Flatten(tree *Tree) []Node {
	if tree == nil || tree.Root == nil {
		return nil
	}
	stats := tree.Stats()
	nodes := make([]Node, 0, stats.Nodes)
	return flattenNode(tree.Root, nodes)
}

func flattenNode(n TreeNode, nodes []Node) []Node {
	switch n := n.(type) {
	case *Interior:
		slot := len(nodes)
		nodes = append(nodes, Node{})
		nodes = flattenNode(n.Left, nodes)
		nodes = flattenNode(n.Right, nodes)
		nodes[slot] = Node{BBox: n.BBox, Kind: Escape, Index: uint32(len(nodes))}
	case *Leaf:
		nodes = append(nodes, Node{BBox: n.BBox, Kind: Object, Index: n.Index})
	}
	return nodes
}

// Degenerate returns the flattened form used for a single-sphere scene: one
// escape node guarding one object node.
func Degenerate(s core.Sphere) []Node {
	box := core.NewAABBFromSphere(s)
	return []Node{
		{BBox: box, Kind: Escape, Index: 2},
		{BBox: box, Kind: Object, Index: 0},
	}
}
