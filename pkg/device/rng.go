package device

import (
	"github.com/chewxy/math32"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
)

// pcgHash is the PCG-RXS-M-XS hash, identical to the kernel's
func pcgHash(input uint32) uint32 {
	state := input*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

// pixelRNG is the per-pixel random stream of one dispatch
type pixelRNG struct {
	state uint32
}

func newPixelRNG(seed, pixel uint32) *pixelRNG {
	return &pixelRNG{state: pcgHash(pixel + pcgHash(seed))}
}

func (r *pixelRNG) next() uint32 {
	r.state = pcgHash(r.state)
	return r.state
}

// float returns a value in [0, 1)
func (r *pixelRNG) float() float32 {
	return float32(r.next()>>8) / 16777216.0
}

// unitVector returns a uniformly distributed direction
func (r *pixelRNG) unitVector() core.Vec3 {
	z := 1 - 2*r.float()
	radius := math32.Sqrt(math32.Max(0, 1-z*z))
	phi := 2 * math32.Pi * r.float()
	return core.NewVec3(radius*math32.Cos(phi), radius*math32.Sin(phi), z)
}

// inUnitSphere returns a uniformly distributed point inside the unit sphere
func (r *pixelRNG) inUnitSphere() core.Vec3 {
	return r.unitVector().Mul(math32.Pow(r.float(), 1.0/3.0))
}
