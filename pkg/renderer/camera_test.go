package renderer

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

func vecClose(a, b core.Vec3) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) >= 1e-5 {
			return false
		}
	}
	return true
}

func TestNewCamera_Basis(t *testing.T) {
	settings := scene.CameraSettings{Position: core.NewVec3(0, 0, 0), VFov: 90}
	cam := NewCamera(settings, 2)

	// Looking down +Z with Y up, the image x axis points along -X
	tests := []struct {
		name string
		got  core.Vec3
		want core.Vec3
	}{
		{"origin", cam.Origin, core.NewVec3(0, 0, 0)},
		{"horizontal", cam.Horizontal, core.NewVec3(-4, 0, 0)},
		{"vertical", cam.Vertical, core.NewVec3(0, 2, 0)},
		{"lower left", cam.LowerLeft, core.NewVec3(2, -1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !vecClose(tt.got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestNewCamera_CenterRayFollowsDirection(t *testing.T) {
	tests := []scene.CameraSettings{
		{Position: core.NewVec3(1, 2, 3), Yaw: 0, Pitch: 0, VFov: 40},
		{Position: core.NewVec3(0, 1, 0), Yaw: 90, Pitch: 10, VFov: 60},
		{Position: core.NewVec3(-5, 0, 2), Yaw: -135, Pitch: -30, VFov: 20},
		scene.LookAt(core.NewVec3(13, 2, 3), core.NewVec3(0, 0, 0), 20),
	}

	for _, settings := range tests {
		cam := NewCamera(settings, 16.0/9.0)
		center := cam.LowerLeft.Add(cam.Horizontal.Mul(0.5)).Add(cam.Vertical.Mul(0.5)).Sub(cam.Origin)
		if !vecClose(center.Normalize(), settings.Direction()) {
			t.Errorf("Camera %+v: expected center ray %v, got %v", settings, settings.Direction(), center.Normalize())
		}
		// The image plane axes are perpendicular to the view and to each other
		if d := cam.Horizontal.Dot(cam.Vertical); math32.Abs(d) > 1e-4 {
			t.Errorf("Camera %+v: horizontal and vertical not perpendicular (dot %v)", settings, d)
		}
		if cam.Vertical.Y() < 0 {
			t.Errorf("Camera %+v: expected vertical to point up, got %v", settings, cam.Vertical)
		}
	}
}

func TestNewCamera_StraightUp(t *testing.T) {
	cam := NewCamera(scene.CameraSettings{Pitch: 90, VFov: 45}, 1)
	for _, v := range []core.Vec3{cam.Horizontal, cam.Vertical, cam.LowerLeft} {
		for i := 0; i < 3; i++ {
			if math32.IsNaN(v[i]) {
				t.Fatalf("Expected finite camera vectors, got %+v", cam)
			}
		}
	}
}

func TestClampPitch(t *testing.T) {
	tests := []struct {
		pitch float32
		want  float32
	}{
		{0, 0},
		{45, 45},
		{95, MaxPitch},
		{-120, -MaxPitch},
	}

	for _, tt := range tests {
		got := ClampPitch(scene.CameraSettings{Pitch: tt.pitch, VFov: 30})
		if got.Pitch != tt.want {
			t.Errorf("Pitch %v: expected %v, got %v", tt.pitch, tt.want, got.Pitch)
		}
		if got.VFov != 30 {
			t.Errorf("Expected vfov to be kept, got %v", got.VFov)
		}
	}
}

func TestAspect(t *testing.T) {
	if got := Aspect(800, 400); got != 2 {
		t.Errorf("Expected 2, got %v", got)
	}
	if got := Aspect(0, 400); got != 1 {
		t.Errorf("Expected 1 for empty target, got %v", got)
	}
}
