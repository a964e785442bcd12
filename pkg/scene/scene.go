package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
)

var logger = log.New("scene")

// ErrInvalidMaterial is returned when a sphere refers to a material that does not exist.
var ErrInvalidMaterial = errors.New("scene: invalid material reference")

// ErrInvalidSphere is returned for spheres that cannot be bounded.
var ErrInvalidSphere = errors.New("scene: invalid sphere")

// CameraSettings is the camera as stored in scene files. Angles are in degrees.
type CameraSettings struct {
	Position core.Vec3 `json:"position"`
	Yaw      float32   `json:"yaw"`   // horizontal angle, 0 looks down +Z
	Pitch    float32   `json:"pitch"` // vertical angle, positive looks up
	VFov     float32   `json:"vfov"`  // vertical field of view
}

// Direction returns the unit view direction
func (c CameraSettings) Direction() core.Vec3 {
	yaw := c.Yaw * math32.Pi / 180
	pitch := c.Pitch * math32.Pi / 180
	return core.NewVec3(
		math32.Cos(pitch)*math32.Sin(yaw),
		math32.Sin(pitch),
		math32.Cos(pitch)*math32.Cos(yaw),
	)
}

// LookAt returns camera settings at from looking towards to
func LookAt(from, to core.Vec3, vfov float32) CameraSettings {
	dir := to.Sub(from).Normalize()
	return CameraSettings{
		Position: from,
		Yaw:      math32.Atan2(dir.X(), dir.Z()) * 180 / math32.Pi,
		Pitch:    math32.Asin(dir.Y()) * 180 / math32.Pi,
		VFov:     vfov,
	}
}

// Light is an emissive material
type Light struct {
	Colour core.Vec3 `json:"colour"`
}

// Lambertian is a diffuse material
type Lambertian struct {
	Albedo core.Vec3 `json:"albedo"`
}

// Metal is a reflective material; roughness 0 is a perfect mirror
type Metal struct {
	Albedo    core.Vec3 `json:"albedo"`
	Roughness float32   `json:"roughness"`
}

// Glass is a dielectric material with index of refraction IR
type Glass struct {
	IR float32 `json:"ir"`
}

// DefaultLight returns a white light
func DefaultLight() Light { return Light{Colour: core.Splat(1)} }

// DefaultLambertian returns a mid-grey diffuse material
func DefaultLambertian() Lambertian { return Lambertian{Albedo: core.Splat(0.5)} }

// DefaultMetal returns a grey, half-rough metal
func DefaultMetal() Metal { return Metal{Albedo: core.Splat(0.5), Roughness: 0.5} }

// DefaultGlass returns ordinary glass
func DefaultGlass() Glass { return Glass{IR: 1.5} }

// Scene is the on-disk scene: a camera, a flat sphere list and one table per material kind.
type Scene struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Group       string `json:"group,omitempty"`

	Camera  CameraSettings `json:"camera"`
	Spheres []core.Sphere  `json:"spheres"`

	Lights      []Light      `json:"lights"`
	Lambertians []Lambertian `json:"lambertians"`
	Metals      []Metal      `json:"metals"`
	Glass       []Glass      `json:"glass"`
}

// AddLight adds an emissive sphere with its own light material
func (s *Scene) AddLight(pos core.Vec3, radius float32, colour core.Vec3) {
	s.Spheres = append(s.Spheres, core.NewSphere(pos, radius, core.Light, uint32(len(s.Lights))))
	s.Lights = append(s.Lights, Light{Colour: colour})
}

// AddLambertian adds a diffuse sphere with its own material
func (s *Scene) AddLambertian(pos core.Vec3, radius float32, albedo core.Vec3) {
	s.Spheres = append(s.Spheres, core.NewSphere(pos, radius, core.Lambertian, uint32(len(s.Lambertians))))
	s.Lambertians = append(s.Lambertians, Lambertian{Albedo: albedo})
}

// AddMetal adds a metal sphere with its own material
func (s *Scene) AddMetal(pos core.Vec3, radius float32, albedo core.Vec3, roughness float32) {
	s.Spheres = append(s.Spheres, core.NewSphere(pos, radius, core.Metal, uint32(len(s.Metals))))
	s.Metals = append(s.Metals, Metal{Albedo: albedo, Roughness: roughness})
}

// AddGlass adds a glass sphere with its own material
func (s *Scene) AddGlass(pos core.Vec3, radius float32, ir float32) {
	s.Spheres = append(s.Spheres, core.NewSphere(pos, radius, core.Glass, uint32(len(s.Glass))))
	s.Glass = append(s.Glass, Glass{IR: ir})
}

// tableLen returns the number of materials of the given kind
func (s *Scene) tableLen(kind core.MaterialKind) int {
	switch kind {
	case core.Light:
		return len(s.Lights)
	case core.Lambertian:
		return len(s.Lambertians)
	case core.Metal:
		return len(s.Metals)
	case core.Glass:
		return len(s.Glass)
	default:
		return 0
	}
}

// Validate checks that every sphere has a positive radius and refers to an
// existing material of its kind.
func (s *Scene) Validate() error {
	for i, sphere := range s.Spheres {
		if !(sphere.Radius > 0) {
			return fmt.Errorf("%w: sphere %d has radius %v", ErrInvalidSphere, i, sphere.Radius)
		}
		if !sphere.Kind.Valid() {
			return fmt.Errorf("%w: sphere %d has unknown kind %d", ErrInvalidMaterial, i, uint32(sphere.Kind))
		}
		if n := s.tableLen(sphere.Kind); int(sphere.MaterialIndex) >= n {
			return fmt.Errorf("%w: sphere %d uses %s %d but only %d defined",
				ErrInvalidMaterial, i, sphere.Kind, sphere.MaterialIndex, n)
		}
	}
	return nil
}

// Load reads and validates a JSON scene file
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}

	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scene: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scene: %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the scene as indented JSON, creating parent directories
func Save(path string, s *Scene) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("scene: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("scene: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("scene: write %s: %w", path, err)
	}
	return nil
}

// Open resolves a scene reference: a built-in scene ID or a path to a JSON file.
// seed only affects randomised built-ins.
func Open(ref string, seed int64) (*Scene, error) {
	if s, ok := Builtin(ref, seed); ok {
		return s, nil
	}
	return Load(ref)
}
