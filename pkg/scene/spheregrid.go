package scene

import (
	"github.com/chewxy/math32"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
)

// oklchToRGB converts OKLCH color values to RGB
// L: lightness (0-1), C: chroma (0-0.4+), H: hue (0-360 degrees)
func oklchToRGB(l, c, h float32) core.Vec3 {
	hRad := h * math32.Pi / 180.0

	// OKLCH to OKLAB
	a := c * math32.Cos(hRad)
	b := c * math32.Sin(hRad)

	// OKLAB to LMS
	l_ := l + 0.3963377774*a + 0.2158037573*b
	m_ := l - 0.1055613458*a - 0.0638541728*b
	s_ := l - 0.0894841775*a - 1.2914855480*b

	l_ = l_ * l_ * l_
	m_ = m_ * m_ * m_
	s_ = s_ * s_ * s_

	// LMS to linear RGB
	r := +4.0767416621*l_ - 3.3077115913*m_ + 0.2309699292*s_
	g := -1.2684380046*l_ + 2.6097574011*m_ - 0.3413193965*s_
	blue := -0.0041960863*l_ - 0.7034186147*m_ + 1.7076147010*s_

	r = math32.Max(0, math32.Min(1, r))
	g = math32.Max(0, math32.Min(1, g))
	blue = math32.Max(0, math32.Min(1, blue))

	return core.NewVec3(r, g, blue)
}

// NewSphereGridScene creates a scene with a gridSize x gridSize grid of metal spheres
func NewSphereGridScene(gridSize int) *Scene {
	if gridSize < 2 {
		gridSize = 10
	}

	s := &Scene{
		Name:        "Sphere Grid",
		Description: "Grid of rainbow-colored metallic spheres",
		Group:       builtinGroup,
		Camera:      LookAt(core.NewVec3(4.5, 6, 18), core.NewVec3(4.5, 0.8, 4.5), 40),
	}

	// A bright sun-like light high and to the side
	s.AddLight(core.NewVec3(20, 25, 20), 8, core.NewVec3(12.0, 11.5, 10.0))

	// Ground sphere stands in for the plane
	s.AddLambertian(core.NewVec3(4.5, -1000, 4.5), 1000, core.Splat(0.5))

	// Fit the grid in roughly 9x9 units regardless of its size
	targetArea := float32(9.0)
	spacing := targetArea / float32(gridSize-1)
	sphereRadius := math32.Max(0.02, math32.Min(0.35, spacing*0.35))

	baseLightness := float32(0.65)
	minChroma := float32(0.05)
	maxChroma := float32(0.25)

	for i := 0; i < gridSize; i++ {
		for j := 0; j < gridSize; j++ {
			x := float32(i)*spacing - targetArea/2.0 + 4.5
			z := float32(j)*spacing - targetArea/2.0 + 4.5
			position := core.NewVec3(x, sphereRadius, z)

			// Hue varies across X, chroma across Z
			hue := (float32(i) / float32(gridSize-1)) * 360.0
			chroma := minChroma + (float32(j)/float32(gridSize-1))*(maxChroma-minChroma)
			lightness := baseLightness + 0.1*math32.Sin(float32(i+j)*0.5)

			roughness := 0.05 + 0.1*float32((i+j)%3)/2.0
			s.AddMetal(position, sphereRadius, oklchToRGB(lightness, chroma, hue), roughness)
		}
	}

	return s
}
