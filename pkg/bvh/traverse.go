package bvh

import "github.com/df07/go-wgpu-pathtracer/pkg/core"

// Traverse walks a flattened hierarchy without a stack, the same way the
// compute kernel does. hitBox decides whether to descend into an escape
// node's subtree; visitObject is called with the sphere index of every
// object node reached.
func Traverse(nodes []Node, hitBox func(core.AABB) bool, visitObject func(index uint32)) {
	cursor := uint32(0)
	for cursor < uint32(len(nodes)) {
		node := nodes[cursor]
		switch node.Kind {
		case Object:
			visitObject(node.Index)
			cursor++
		default:
			if hitBox(node.BBox) {
				cursor++
			} else {
				cursor = node.Index
			}
		}
	}
}

// ClosestHit returns the index and ray parameter of the nearest sphere hit
// by the ray in (tMin, tMax), using stackless traversal.
func ClosestHit(nodes []Node, spheres []core.Sphere, ray core.Ray, tMin, tMax float32) (uint32, float32, bool) {
	closest := tMax
	var hitIndex uint32
	found := false

	Traverse(nodes,
		func(box core.AABB) bool { return box.Hit(ray, tMin, closest) },
		func(index uint32) {
			if t, ok := spheres[index].Hit(ray, tMin, closest); ok {
				closest = t
				hitIndex = index
				found = true
			}
		})

	return hitIndex, closest, found
}
