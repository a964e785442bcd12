package packing

import (
	"encoding/binary"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func u32At(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func TestRecordSizes(t *testing.T) {
	tests := []struct {
		name   string
		record any
		want   int
	}{
		{"node", nodeRecord{}, NodeSize},
		{"sphere", sphereRecord{}, SphereSize},
		{"light", lightRecord{}, LightSize},
		{"lambertian", lambertianRecord{}, LambertianSize},
		{"metal", metalRecord{}, MetalSize},
		{"glass", glassRecord{}, GlassSize},
		{"camera", Camera{}, CameraSize},
		{"globals", Globals{}, GlobalsSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := binary.Size(tt.record); got != tt.want {
				t.Errorf("Expected %d bytes, got %d", tt.want, got)
			}
		})
	}
}

func TestEncodeNodes_Layout(t *testing.T) {
	nodes := []bvh.Node{
		{BBox: core.NewAABB(core.NewVec3(-1, -2, -3), core.NewVec3(4, 5, 6)), Kind: bvh.Escape, Index: 7},
		{BBox: core.NewAABB(core.NewVec3(0, 0, 0), core.NewVec3(1, 1, 1)), Kind: bvh.Object, Index: 3},
	}
	b := EncodeNodes(nodes)

	if len(b) != 2*NodeSize {
		t.Fatalf("Expected %d bytes, got %d", 2*NodeSize, len(b))
	}
	if f32At(b, 0) != -1 || f32At(b, 4) != -2 || f32At(b, 8) != -3 {
		t.Errorf("Unexpected min at offset 0: %v %v %v", f32At(b, 0), f32At(b, 4), f32At(b, 8))
	}
	if f32At(b, 16) != 4 || f32At(b, 20) != 5 || f32At(b, 24) != 6 {
		t.Errorf("Unexpected max at offset 16: %v %v %v", f32At(b, 16), f32At(b, 20), f32At(b, 24))
	}
	if u32At(b, 32) != 0 || u32At(b, 36) != 7 {
		t.Errorf("Expected kind 0 index 7, got %d %d", u32At(b, 32), u32At(b, 36))
	}
	if u32At(b, NodeSize+32) != 1 || u32At(b, NodeSize+36) != 3 {
		t.Errorf("Expected kind 1 index 3, got %d %d", u32At(b, NodeSize+32), u32At(b, NodeSize+36))
	}
	for _, off := range []int{12, 28, 40, 44} {
		if u32At(b, off) != 0 {
			t.Errorf("Expected zero padding at offset %d, got %d", off, u32At(b, off))
		}
	}
}

func TestEncodeSpheres_Layout(t *testing.T) {
	b := EncodeSpheres([]core.Sphere{core.NewSphere(core.NewVec3(1, 2, 3), 0.5, core.Metal, 9)})

	if len(b) != SphereSize {
		t.Fatalf("Expected %d bytes, got %d", SphereSize, len(b))
	}
	if f32At(b, 0) != 1 || f32At(b, 4) != 2 || f32At(b, 8) != 3 || f32At(b, 12) != 0.5 {
		t.Errorf("Unexpected position/radius: %v", b[:16])
	}
	if u32At(b, 16) != uint32(core.Metal) || u32At(b, 20) != 9 {
		t.Errorf("Expected kind %d material 9, got %d %d", core.Metal, u32At(b, 16), u32At(b, 20))
	}
}

func TestEncodeMaterials_Layout(t *testing.T) {
	metal := EncodeMetals([]scene.Metal{{Albedo: core.NewVec3(0.1, 0.2, 0.3), Roughness: 0.4}})
	if len(metal) != MetalSize || f32At(metal, 12) != 0.4 {
		t.Errorf("Expected roughness at offset 12, got %v", metal)
	}

	glass := EncodeGlass([]scene.Glass{{IR: 1.5}, {IR: 2.4}})
	if len(glass) != 2*GlassSize || f32At(glass, 4) != 2.4 {
		t.Errorf("Expected tightly packed glass records, got %v", glass)
	}

	light := EncodeLights([]scene.Light{{Colour: core.NewVec3(4, 5, 6)}})
	if len(light) != LightSize || f32At(light, 8) != 6 || u32At(light, 12) != 0 {
		t.Errorf("Unexpected light record %v", light)
	}
}

func TestEncodeMaterials_EmptyTables(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		size int
	}{
		{"lights", EncodeLights(nil), LightSize},
		{"lambertians", EncodeLambertians(nil), LambertianSize},
		{"metals", EncodeMetals(nil), MetalSize},
		{"glass", EncodeGlass(nil), GlassSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.data) != tt.size {
				t.Errorf("Expected one %d-byte record, got %d bytes", tt.size, len(tt.data))
			}
			for i, v := range tt.data {
				if v != 0 {
					t.Errorf("Expected zeroed record, byte %d is %d", i, v)
				}
			}
		})
	}
}

func TestUniformLayout(t *testing.T) {
	cam := Camera{
		Origin:     core.NewVec3(1, 2, 3),
		Horizontal: core.NewVec3(4, 5, 6),
		Vertical:   core.NewVec3(7, 8, 9),
		LowerLeft:  core.NewVec3(10, 11, 12),
	}
	b := cam.Bytes()
	if len(b) != CameraSize {
		t.Fatalf("Expected %d bytes, got %d", CameraSize, len(b))
	}
	for i, off := range []int{0, 16, 32, 48} {
		if f32At(b, off) != float32(3*i+1) {
			t.Errorf("Expected %d at offset %d, got %v", 3*i+1, off, f32At(b, off))
		}
	}

	g := Globals{Seed: 0xdeadbeef, Samples: 4, Depth: 8, Width: 640, Height: 480, RowTexels: 640}
	gb := g.Bytes()
	if len(gb) != GlobalsSize {
		t.Fatalf("Expected %d bytes, got %d", GlobalsSize, len(gb))
	}
	want := []uint32{0xdeadbeef, 4, 8, 640, 480, 640, 0, 0}
	for i, w := range want {
		if u32At(gb, i*4) != w {
			t.Errorf("Globals word %d: expected %d, got %d", i, w, u32At(gb, i*4))
		}
	}

	decodedCam, err := DecodeCamera(b)
	if err != nil || decodedCam != cam {
		t.Errorf("Expected camera to decode back, got %+v err=%v", decodedCam, err)
	}
	decodedGlobals, err := DecodeGlobals(gb)
	if err != nil || decodedGlobals != g {
		t.Errorf("Expected globals to decode back, got %+v err=%v", decodedGlobals, err)
	}
}

func TestPackScene_DecodesBack(t *testing.T) {
	s := scene.NewRandomScene(3, 3)
	tree, err := bvh.Build(s.Spheres, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	nodes := bvh.Flatten(tree)
	data := PackScene(nodes, s)

	if data.NodeCount() != len(nodes) || data.SphereCount() != len(s.Spheres) {
		t.Errorf("Expected %d nodes and %d spheres, got %d and %d",
			len(nodes), len(s.Spheres), data.NodeCount(), data.SphereCount())
	}

	gotNodes, err := DecodeNodes(data.Nodes)
	if err != nil || !reflect.DeepEqual(gotNodes, nodes) {
		t.Errorf("Expected nodes to decode back, err=%v", err)
	}
	gotSpheres, err := DecodeSpheres(data.Spheres)
	if err != nil || !reflect.DeepEqual(gotSpheres, s.Spheres) {
		t.Errorf("Expected spheres to decode back, err=%v", err)
	}
	gotMetals, err := DecodeMetals(data.Metals)
	if err != nil || (len(s.Metals) > 0 && !reflect.DeepEqual(gotMetals, s.Metals)) {
		t.Errorf("Expected metals to decode back, err=%v", err)
	}
}

func TestDecode_RejectsTruncated(t *testing.T) {
	if _, err := DecodeNodes(make([]byte, NodeSize+1)); err == nil {
		t.Error("Expected error for truncated node buffer")
	}
	if _, err := DecodeGlobals(make([]byte, 2*GlobalsSize)); err == nil {
		t.Error("Expected error for two globals records")
	}
}
