package scene

import "github.com/df07/go-wgpu-pathtracer/pkg/core"

// NewDefaultScene creates a small scene with one of each material and a light
func NewDefaultScene() *Scene {
	s := &Scene{
		Name:        "Default Scene",
		Description: "Basic scene with one sphere of each material under a sphere light",
		Group:       builtinGroup,
		Camera:      LookAt(core.NewVec3(0, 0.75, 2), core.NewVec3(0, 0.5, -1), 40),
	}

	s.AddLight(core.NewVec3(30, 30.5, 15), 10, core.NewVec3(15.0, 14.0, 13.0))

	s.AddLambertian(core.NewVec3(0, -1000, 0), 1000, core.NewVec3(0.8, 0.8, 0.0).Mul(0.6))
	s.AddLambertian(core.NewVec3(0, 0.5, -1), 0.5, core.NewVec3(0.65, 0.25, 0.2))
	s.AddMetal(core.NewVec3(-1, 0.5, -1), 0.5, core.NewVec3(0.8, 0.8, 0.8), 0.0)
	s.AddMetal(core.NewVec3(1, 0.5, -1), 0.5, core.NewVec3(0.8, 0.6, 0.2), 0.3)
	s.AddGlass(core.NewVec3(0.5, 0.25, -0.5), 0.25, 1.5)
	s.AddLambertian(core.NewVec3(-0.5, 0.2, -0.5), 0.2, core.NewVec3(0.1, 0.2, 0.5))

	return s
}
