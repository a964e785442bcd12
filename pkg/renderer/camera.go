package renderer

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// MaxPitch bounds the camera pitch in degrees so the view never aligns with up
const MaxPitch float32 = 80

var worldUp = core.NewVec3(0, 1, 0)

// NewCamera builds the camera uniform for the given settings and aspect ratio
func NewCamera(settings scene.CameraSettings, aspect float32) packing.Camera {
	viewportHeight := 2 * math32.Tan(mgl32.DegToRad(settings.VFov)/2)
	viewportWidth := viewportHeight * aspect

	dir := settings.Direction()
	right := dir.Cross(worldUp)
	if core.NearZero(right) {
		right = core.NewVec3(1, 0, 0)
	}
	right = right.Normalize()
	up := right.Cross(dir)

	horizontal := right.Mul(viewportWidth)
	vertical := up.Mul(viewportHeight)
	lowerLeft := settings.Position.Add(dir).Sub(horizontal.Mul(0.5)).Sub(vertical.Mul(0.5))

	return packing.Camera{
		Origin:     settings.Position,
		Horizontal: horizontal,
		Vertical:   vertical,
		LowerLeft:  lowerLeft,
	}
}

// ClampPitch limits the pitch of a camera to [-MaxPitch, MaxPitch]
func ClampPitch(settings scene.CameraSettings) scene.CameraSettings {
	settings.Pitch = mgl32.Clamp(settings.Pitch, -MaxPitch, MaxPitch)
	return settings
}

// Aspect returns width / height, or 1 for an empty target
func Aspect(width, height uint32) float32 {
	if width == 0 || height == 0 {
		return 1
	}
	return float32(width) / float32(height)
}
