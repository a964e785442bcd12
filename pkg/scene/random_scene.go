package scene

import (
	"math/rand"

	"github.com/df07/go-wgpu-pathtracer/pkg/core"
)

// DefaultRandomSize is the half-width of the small-sphere grid in the random scene
const DefaultRandomSize = 5

// NewRandomScene creates the classic "final scene": a huge ground sphere,
// three large feature spheres and a jittered grid of small spheres with
// random materials. The same seed always produces the same scene.
func NewRandomScene(seed int64, size int) *Scene {
	if size <= 0 {
		size = DefaultRandomSize
	}
	rng := rand.New(rand.NewSource(seed))

	s := &Scene{
		Name:        "Random Spheres",
		Description: "Ground, three feature spheres and a field of random small spheres",
		Group:       builtinGroup,
		Camera:      LookAt(core.NewVec3(13, 2, 3), core.Vec3{}, 20),
	}
	// Small light spheres all share the first light
	s.Lights = append(s.Lights, DefaultLight())

	s.AddLambertian(core.NewVec3(0, -1000, 0), 1000, core.Splat(0.5)) // ground
	s.AddGlass(core.NewVec3(0, 1, 0), 1, 1.5)
	s.AddLambertian(core.NewVec3(-4, 1, 0), 1, core.NewVec3(0.4, 0.2, 0.1))
	s.AddMetal(core.NewVec3(4, 1, 0), 1, core.NewVec3(0.7, 0.6, 0.5), 0)

	between := func(lo, hi float32) float32 { return lo + (hi-lo)*rng.Float32() }

	for a := -size; a < size; a++ {
		for b := -size; b < size; b++ {
			mat := rng.Float32()
			pos := core.NewVec3(float32(a)+0.9*rng.Float32(), 0.2, float32(b)+0.9*rng.Float32())
			if pos.Len() >= float32(size) {
				continue
			}

			switch {
			case mat < 0.25:
				albedo := core.NewVec3(
					rng.Float32()*rng.Float32(),
					rng.Float32()*rng.Float32(),
					rng.Float32()*rng.Float32(),
				)
				s.AddLambertian(pos, 0.2, albedo)
			case mat < 0.5:
				albedo := core.NewVec3(between(0.5, 1), between(0.5, 1), between(0.5, 1))
				s.AddMetal(pos, 0.2, albedo, between(0, 0.5))
			case mat < 0.75:
				s.AddGlass(pos, 0.2, between(1, 4))
			default:
				s.Spheres = append(s.Spheres, core.NewSphere(pos, 0.2, core.Light, 0))
			}
		}
	}

	return s
}
