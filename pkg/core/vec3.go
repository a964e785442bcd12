package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Vec3 is the float32 vector shared with the GPU records.
type Vec3 = mgl32.Vec3

// NewVec3 creates a new Vec3
func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

// Splat returns a vector with all three components set to v
func Splat(v float32) Vec3 {
	return Vec3{v, v, v}
}

// MinVec3 returns the component-wise minimum of two vectors
func MinVec3(a, b Vec3) Vec3 {
	return Vec3{
		math32.Min(a[0], b[0]),
		math32.Min(a[1], b[1]),
		math32.Min(a[2], b[2]),
	}
}

// MaxVec3 returns the component-wise maximum of two vectors
func MaxVec3(a, b Vec3) Vec3 {
	return Vec3{
		math32.Max(a[0], b[0]),
		math32.Max(a[1], b[1]),
		math32.Max(a[2], b[2]),
	}
}

// MulVec returns the component-wise product of two vectors
func MulVec(a, b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// Reflect reflects v about the unit normal n
func Reflect(v, n Vec3) Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

// Refract bends the unit vector uv through a surface with unit normal n.
// etaRatio is the ratio of refractive indices (incident / transmitted).
func Refract(uv, n Vec3, etaRatio float32) Vec3 {
	cosTheta := math32.Min(uv.Mul(-1).Dot(n), 1)
	rOutPerp := uv.Add(n.Mul(cosTheta)).Mul(etaRatio)
	rOutParallel := n.Mul(-math32.Sqrt(math32.Abs(1 - rOutPerp.Dot(rOutPerp))))
	return rOutPerp.Add(rOutParallel)
}

// NearZero reports whether all components are close to zero
func NearZero(v Vec3) bool {
	const s = 1e-6
	return math32.Abs(v[0]) < s && math32.Abs(v[1]) < s && math32.Abs(v[2]) < s
}

// Ray represents a ray with an origin and direction
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// NewRay creates a new ray
func NewRay(origin, direction Vec3) Ray {
	return Ray{Origin: origin, Direction: direction}
}

// At returns the point at parameter t along the ray
func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}
