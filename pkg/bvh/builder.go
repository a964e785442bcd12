package bvh

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
)

// ErrInvalidScene is returned when a scene cannot be turned into a hierarchy.
var ErrInvalidScene = errors.New("bvh: invalid scene")

var logger = log.New("bvh")

// TreeNode is either an *Interior or a *Leaf.
type TreeNode interface {
	Bounds() core.AABB
}

// Interior is a build-time node that owns its two children.
type Interior struct {
	BBox  core.AABB
	Left  TreeNode
	Right TreeNode
}

// Bounds returns the union of the children's boxes
func (n *Interior) Bounds() core.AABB { return n.BBox }

// Leaf refers to a single sphere by its index in the scene.
type Leaf struct {
	Index uint32
	BBox  core.AABB
}

// Bounds returns the padded box of the referenced sphere
func (l *Leaf) Bounds() core.AABB { return l.BBox }

// Tree is the build-time hierarchy. The root is always an interior node.
type Tree struct {
	Root *Interior
}

// item pairs a sphere with its original scene index so sorting does not lose identity
type item struct {
	index  uint32
	sphere core.Sphere
}

// Build constructs a hierarchy over the spheres. At least two spheres are
// required. When rng is non-nil, interior nodes built from four or more
// spheres swap their children with probability 0.5; a nil rng disables the
// swap and makes the result a pure function of the input order.
func Build(spheres []core.Sphere, rng *rand.Rand) (*Tree, error) {
	if len(spheres) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 spheres, got %d", ErrInvalidScene, len(spheres))
	}

	// Work on a copy; sorting must not reorder the caller's slice
	items := make([]item, len(spheres))
	for i, s := range spheres {
		items[i] = item{index: uint32(i), sphere: s}
	}

	tree := &Tree{Root: buildInterior(items, rng)}

	stats := tree.Stats()
	logger.Debugf("built BVH over %d spheres: %d nodes, max depth %d, avg leaf depth %.2f",
		stats.Leaves, stats.Nodes, stats.MaxDepth, stats.AvgDepth)

	return tree, nil
}

func newLeaf(it item) *Leaf {
	return &Leaf{Index: it.index, BBox: core.NewAABBFromSphere(it.sphere)}
}

// buildInterior requires len(items) >= 2
func buildInterior(items []item, rng *rand.Rand) *Interior {
	switch len(items) {
	case 2:
		left := newLeaf(items[0])
		right := newLeaf(items[1])
		return &Interior{
			BBox:  left.BBox.Union(right.BBox),
			Left:  left,
			Right: right,
		}

	case 3:
		// The last sphere becomes a leaf on the left; the rest pair up on the right
		left := newLeaf(items[2])
		right := buildInterior(items[:2], rng)
		return &Interior{
			BBox:  left.BBox.Union(right.BBox),
			Left:  left,
			Right: right,
		}
	}

	bounds := core.NewAABBFromSphere(items[0].sphere)
	for _, it := range items[1:] {
		bounds = bounds.Union(core.NewAABBFromSphere(it.sphere))
	}
	sortItemsByAxis(items, bounds.LongestAxis())

	mid := len(items) / 2
	var left, right TreeNode = buildInterior(items[:mid], rng), buildInterior(items[mid:], rng)
	node := &Interior{
		BBox: left.Bounds().Union(right.Bounds()),
	}

	if rng != nil && rng.Intn(2) == 1 {
		left, right = right, left
	}
	node.Left, node.Right = left, right
	return node
}

// sortItemsByAxis stable-sorts items by sphere centre along the given axis
func sortItemsByAxis(items []item, axis int) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sphere.Position[axis] < items[j].sphere.Position[axis]
	})
}
