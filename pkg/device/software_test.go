package device

import (
	"errors"
	"image"
	"math/rand"
	"reflect"
	"testing"

	"github.com/chewxy/math32"
	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

func testCamera() packing.Camera {
	return packing.Camera{
		Origin:     core.NewVec3(0, 0, 0),
		Horizontal: core.NewVec3(0.4, 0, 0),
		Vertical:   core.NewVec3(0, 0.4, 0),
		LowerLeft:  core.NewVec3(-0.2, -0.2, 1),
	}
}

func packScene(t *testing.T, s *scene.Scene) packing.SceneData {
	t.Helper()
	tree, err := bvh.Build(s.Spheres, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return packing.PackScene(bvh.Flatten(tree), s)
}

// lightWallScene puts a large light in front of the camera so every primary ray hits it
func lightWallScene() *scene.Scene {
	s := &scene.Scene{}
	s.AddLight(core.NewVec3(0, 0, 50), 40, core.NewVec3(2, 3, 4))
	s.AddLambertian(core.NewVec3(0, 0, -50), 1, core.Splat(0.5))
	return s
}

// skyScene has nothing in front of the camera
func skyScene() *scene.Scene {
	s := &scene.Scene{}
	s.AddLambertian(core.NewVec3(0, 0, -50), 1, core.Splat(0.5))
	s.AddLambertian(core.NewVec3(3, 0, -50), 1, core.Splat(0.5))
	return s
}

func newReadyDevice(t *testing.T, s *scene.Scene, width, height uint32) *Software {
	t.Helper()
	d := NewSoftware()
	t.Cleanup(func() { d.Close() })
	if err := d.UploadScene(packScene(t, s)); err != nil {
		t.Fatalf("UploadScene failed: %v", err)
	}
	if err := d.Resize(width, height); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if err := d.ClearTarget(); err != nil {
		t.Fatalf("ClearTarget failed: %v", err)
	}
	return d
}

func readPixels(t *testing.T, d *Software) ([]float32, ReadbackLayout) {
	t.Helper()
	rb, err := d.CopyTarget()
	if err != nil {
		t.Fatalf("CopyTarget failed: %v", err)
	}
	data, err := rb.Map()
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	layout := rb.Layout()
	if uint64(len(data)) != layout.Size() {
		t.Fatalf("Expected %d mapped bytes, got %d", layout.Size(), len(data))
	}
	return layout.Strip(data), layout
}

func TestNewReadbackLayout(t *testing.T) {
	tests := []struct {
		width     uint32
		unpadded  uint32
		padded    uint32
		rowTexels uint32
	}{
		{1, 16, 256, 16},
		{10, 160, 256, 16},
		{16, 256, 256, 16},
		{17, 272, 512, 32},
		{800, 12800, 12800, 800},
	}

	for _, tt := range tests {
		layout := NewReadbackLayout(tt.width, 3)
		if layout.UnpaddedBytesPerRow != tt.unpadded || layout.PaddedBytesPerRow != tt.padded {
			t.Errorf("width %d: expected %d/%d bytes per row, got %d/%d",
				tt.width, tt.unpadded, tt.padded, layout.UnpaddedBytesPerRow, layout.PaddedBytesPerRow)
		}
		if layout.RowTexels() != tt.rowTexels {
			t.Errorf("width %d: expected %d row texels, got %d", tt.width, tt.rowTexels, layout.RowTexels())
		}
		if layout.Size() != uint64(tt.padded)*3 {
			t.Errorf("width %d: expected size %d, got %d", tt.width, tt.padded*3, layout.Size())
		}
	}
}

func TestReadbackLayout_Strip(t *testing.T) {
	layout := NewReadbackLayout(3, 2)
	padded := make([]float32, int(layout.Size()/4))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 4; c++ {
				padded[y*int(layout.RowTexels())*4+x*4+c] = float32(100*y + 10*x + c)
			}
		}
	}
	// Garbage in the padding must not leak through
	padded[len(padded)-1] = -1

	got := layout.Strip(encodeTarget(padded))
	if len(got) != 3*2*4 {
		t.Fatalf("Expected %d values, got %d", 24, len(got))
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 4; c++ {
				want := float32(100*y + 10*x + c)
				if v := got[(y*3+x)*4+c]; v != want {
					t.Errorf("Pixel (%d,%d) channel %d: expected %v, got %v", x, y, c, want, v)
				}
			}
		}
	}
}

func TestWorkgroupGrid(t *testing.T) {
	groups := newWorkgroupGrid(33, 17)
	if len(groups) != 3*2 {
		t.Fatalf("Expected 6 workgroups, got %d", len(groups))
	}

	covered := make(map[image.Point]int)
	for _, g := range groups {
		if g.Dx() > WorkgroupSize || g.Dy() > WorkgroupSize {
			t.Errorf("Workgroup %v exceeds %d pixels", g, WorkgroupSize)
		}
		for y := g.Min.Y; y < g.Max.Y; y++ {
			for x := g.Min.X; x < g.Max.X; x++ {
				covered[image.Pt(x, y)]++
			}
		}
	}
	if len(covered) != 33*17 {
		t.Errorf("Expected %d pixels covered, got %d", 33*17, len(covered))
	}
	for p, n := range covered {
		if n != 1 {
			t.Errorf("Pixel %v covered %d times", p, n)
		}
	}
}

func TestSoftware_Errors(t *testing.T) {
	d := NewSoftware()

	if err := d.Dispatch(testCamera(), packing.Globals{}); !errors.Is(err, ErrTargetNotAllocated) {
		t.Errorf("Expected ErrTargetNotAllocated, got %v", err)
	}
	if err := d.ClearTarget(); !errors.Is(err, ErrTargetNotAllocated) {
		t.Errorf("Expected ErrTargetNotAllocated, got %v", err)
	}
	if _, err := d.CopyTarget(); !errors.Is(err, ErrTargetNotAllocated) {
		t.Errorf("Expected ErrTargetNotAllocated, got %v", err)
	}
	if err := d.Resize(0, 10); err == nil {
		t.Error("Expected error for zero width")
	}

	if err := d.Resize(8, 8); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if err := d.Dispatch(testCamera(), packing.Globals{}); !errors.Is(err, ErrNoScene) {
		t.Errorf("Expected ErrNoScene, got %v", err)
	}

	if err := d.UploadScene(packing.SceneData{Nodes: []byte{1, 2, 3}}); err == nil {
		t.Error("Expected error for malformed scene buffers")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Resize(8, 8); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Expected ErrDeviceLost after Close, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
}

func TestSoftware_LightAccumulates(t *testing.T) {
	d := newReadyDevice(t, lightWallScene(), 20, 12)
	globals := packing.Globals{Seed: 1, Samples: 2, Depth: 4, Width: 20, Height: 12, RowTexels: 32}

	const frames = 3
	for i := 0; i < frames; i++ {
		globals.Seed = uint32(i + 1)
		if err := d.Dispatch(testCamera(), globals); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}

	pixels, layout := readPixels(t, d)
	if layout.Width != 20 || layout.Height != 12 {
		t.Fatalf("Expected 20x12 layout, got %dx%d", layout.Width, layout.Height)
	}
	want := []float32{2 * 6, 3 * 6, 4 * 6, 6}
	for i := 0; i < len(pixels); i += 4 {
		for c := 0; c < 4; c++ {
			if pixels[i+c] != want[c] {
				t.Fatalf("Pixel %d channel %d: expected %v, got %v", i/4, c, want[c], pixels[i+c])
			}
		}
	}
	if d.Dispatches() != frames {
		t.Errorf("Expected %d dispatches, got %d", frames, d.Dispatches())
	}
}

func TestSoftware_ClearResetsTarget(t *testing.T) {
	d := newReadyDevice(t, skyScene(), 8, 8)
	globals := packing.Globals{Seed: 5, Samples: 1, Depth: 2, Width: 8, Height: 8, RowTexels: 16}

	if err := d.Dispatch(testCamera(), globals); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := d.ClearTarget(); err != nil {
		t.Fatalf("ClearTarget failed: %v", err)
	}
	pixels, _ := readPixels(t, d)
	for i, v := range pixels {
		if v != 0 {
			t.Fatalf("Expected cleared target, value %d is %v", i, v)
		}
	}

	if err := d.Dispatch(testCamera(), globals); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	pixels, _ = readPixels(t, d)
	for i := 0; i < len(pixels); i += 4 {
		if pixels[i+3] != 1 {
			t.Fatalf("Pixel %d: expected one sample, got %v", i/4, pixels[i+3])
		}
		// Sky colour lies between the horizon white and the zenith blue
		if pixels[i] < 0.5 || pixels[i] > 1 || math32.Abs(pixels[i+2]-1) > 1e-5 {
			t.Fatalf("Pixel %d: expected sky colour, got %v", i/4, pixels[i:i+3])
		}
	}
}

func TestSoftware_CopySnapshotsQueuedState(t *testing.T) {
	d := newReadyDevice(t, lightWallScene(), 4, 4)
	globals := packing.Globals{Seed: 1, Samples: 1, Depth: 2, Width: 4, Height: 4, RowTexels: 16}

	if err := d.Dispatch(testCamera(), globals); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	rb, err := d.CopyTarget()
	if err != nil {
		t.Fatalf("CopyTarget failed: %v", err)
	}
	// Work submitted after the copy must not show up in it
	if err := d.Dispatch(testCamera(), globals); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	data, err := rb.Map()
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	pixels := rb.Layout().Strip(data)
	if pixels[3] != 1 {
		t.Errorf("Expected the copy to hold one sample, got %v", pixels[3])
	}

	if err := d.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if d.Dispatches() != 2 {
		t.Errorf("Expected 2 dispatches after flush, got %d", d.Dispatches())
	}
}

func TestSoftware_Deterministic(t *testing.T) {
	render := func() []float32 {
		d := newReadyDevice(t, scene.NewDefaultScene(), 16, 9)
		cam := testCamera()
		cam.Origin = core.NewVec3(0, 0.75, 2)
		cam.LowerLeft = cam.Origin.Add(core.NewVec3(-0.2, -0.3, -1))
		globals := packing.Globals{Seed: 77, Samples: 2, Depth: 6, Width: 16, Height: 9, RowTexels: 16}
		if err := d.Dispatch(cam, globals); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		pixels, _ := readPixels(t, d)
		return pixels
	}

	if !reflect.DeepEqual(render(), render()) {
		t.Error("Expected identical output for the same seed")
	}
}

func TestPixelRNG(t *testing.T) {
	rng := newPixelRNG(1, 2)
	for i := 0; i < 1000; i++ {
		if f := rng.float(); f < 0 || f >= 1 {
			t.Fatalf("Expected float in [0, 1), got %v", f)
		}
		v := rng.unitVector()
		if l := v.Len(); l < 0.999 || l > 1.001 {
			t.Fatalf("Expected unit vector, got length %v", l)
		}
		if p := rng.inUnitSphere(); p.Len() > 1.0001 {
			t.Fatalf("Expected point inside unit sphere, got %v", p)
		}
	}

	if newPixelRNG(1, 2).next() == newPixelRNG(1, 3).next() {
		t.Error("Expected neighbouring pixels to get different streams")
	}
}
