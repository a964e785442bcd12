package core

import "github.com/chewxy/math32"

// SpherePadding is added to the radius of every sphere box so that no box is
// degenerate and traversal tolerates float error at the box faces.
const SpherePadding float32 = 0.01

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min Vec3 // Minimum corner
	Max Vec3 // Maximum corner
}

// NewAABB creates a new AABB from min and max points
func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// NewAABBFromSphere returns the padded box around a sphere
func NewAABBFromSphere(s Sphere) AABB {
	r := Splat(s.Radius + SpherePadding)
	return AABB{
		Min: s.Position.Sub(r),
		Max: s.Position.Add(r),
	}
}

// NewAABBFromPoints creates an AABB that bounds all given points
func NewAABBFromPoints(points ...Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}

	min := points[0]
	max := points[0]
	for _, point := range points[1:] {
		min = MinVec3(min, point)
		max = MaxVec3(max, point)
	}

	return AABB{Min: min, Max: max}
}

// Union returns an AABB that bounds both this AABB and another
func (aabb AABB) Union(other AABB) AABB {
	return AABB{
		Min: MinVec3(aabb.Min, other.Min),
		Max: MaxVec3(aabb.Max, other.Max),
	}
}

// Hit tests if a ray intersects with this AABB using the slab method
func (aabb AABB) Hit(ray Ray, tMin, tMax float32) bool {
	for axis := 0; axis < 3; axis++ {
		origin := ray.Origin[axis]
		direction := ray.Direction[axis]

		// Handle parallel rays (direction near zero)
		if math32.Abs(direction) < 1e-8 {
			if origin < aabb.Min[axis] || origin > aabb.Max[axis] {
				return false
			}
			continue
		}

		invDirection := 1.0 / direction
		t1 := (aabb.Min[axis] - origin) * invDirection
		t2 := (aabb.Max[axis] - origin) * invDirection
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math32.Max(tMin, t1)
		tMax = math32.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}

	return true
}

// Center returns the center point of the AABB
func (aabb AABB) Center() Vec3 {
	return aabb.Min.Add(aabb.Max).Mul(0.5)
}

// Size returns the size (extent) of the AABB along each axis
func (aabb AABB) Size() Vec3 {
	return aabb.Max.Sub(aabb.Min)
}

// LongestAxis returns the axis (0=X, 1=Y, 2=Z) with the longest extent.
// X wins only when strictly greater than both Y and Z; otherwise Y wins
// when strictly greater than Z.
func (aabb AABB) LongestAxis() int {
	size := aabb.Size()
	if size.X() > size.Y() && size.X() > size.Z() {
		return 0 // X axis
	}
	if size.Y() > size.Z() {
		return 1 // Y axis
	}
	return 2 // Z axis
}

// IsValid returns true if this is a valid AABB (min <= max for all axes)
func (aabb AABB) IsValid() bool {
	return aabb.Min.X() <= aabb.Max.X() &&
		aabb.Min.Y() <= aabb.Max.Y() &&
		aabb.Min.Z() <= aabb.Max.Z()
}

// Contains reports whether other lies entirely inside this box
func (aabb AABB) Contains(other AABB) bool {
	for axis := 0; axis < 3; axis++ {
		if other.Min[axis] < aabb.Min[axis] || other.Max[axis] > aabb.Max[axis] {
			return false
		}
	}
	return true
}

// ContainsSphere reports whether every point of the sphere lies inside the box
func (aabb AABB) ContainsSphere(s Sphere) bool {
	for axis := 0; axis < 3; axis++ {
		if s.Position[axis]-s.Radius < aabb.Min[axis] || s.Position[axis]+s.Radius > aabb.Max[axis] {
			return false
		}
	}
	return true
}
