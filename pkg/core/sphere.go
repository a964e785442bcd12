package core

import (
	"fmt"

	"github.com/chewxy/math32"
)

// MaterialKind selects the material table a sphere's MaterialIndex points into.
// The numeric values are shared with the compute kernel.
type MaterialKind uint32

const (
	Light MaterialKind = iota
	Lambertian
	Metal
	Glass
)

var materialKindNames = [...]string{"light", "lambertian", "metal", "glass"}

func (k MaterialKind) String() string {
	if int(k) < len(materialKindNames) {
		return materialKindNames[k]
	}
	return fmt.Sprintf("MaterialKind(%d)", uint32(k))
}

// Valid reports whether k is one of the known material kinds
func (k MaterialKind) Valid() bool {
	return k <= Glass
}

// MarshalText encodes the kind by name
func (k MaterialKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown material kind %d", uint32(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name
func (k *MaterialKind) UnmarshalText(text []byte) error {
	for i, name := range materialKindNames {
		if name == string(text) {
			*k = MaterialKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown material kind %q", string(text))
}

// Sphere is the only primitive. Its position in the scene's sphere list is its
// identity; the BVH refers to spheres by that index.
type Sphere struct {
	Position      Vec3         `json:"position"`
	Radius        float32      `json:"radius"`
	Kind          MaterialKind `json:"kind"`
	MaterialIndex uint32       `json:"material"`
}

// NewSphere creates a new sphere
func NewSphere(position Vec3, radius float32, kind MaterialKind, materialIndex uint32) Sphere {
	return Sphere{
		Position:      position,
		Radius:        radius,
		Kind:          kind,
		MaterialIndex: materialIndex,
	}
}

// BoundingBox returns the padded box of the sphere
func (s Sphere) BoundingBox() AABB {
	return NewAABBFromSphere(s)
}

// Hit returns the nearest ray parameter in (tMin, tMax) where the ray meets
// the sphere surface.
func (s Sphere) Hit(ray Ray, tMin, tMax float32) (float32, bool) {
	oc := ray.Origin.Sub(s.Position)
	a := ray.Direction.Dot(ray.Direction)
	halfB := oc.Dot(ray.Direction)
	c := oc.Dot(oc) - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return 0, false
	}

	sqrtd := math32.Sqrt(discriminant)
	root := (-halfB - sqrtd) / a
	if root <= tMin || root >= tMax {
		root = (-halfB + sqrtd) / a
		if root <= tMin || root >= tMax {
			return 0, false
		}
	}

	return root, true
}

// Normal returns the outward unit normal at point p on the surface
func (s Sphere) Normal(p Vec3) Vec3 {
	return p.Sub(s.Position).Mul(1 / s.Radius)
}
