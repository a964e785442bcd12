// Package packing encodes scene data into the little-endian, 16-byte aligned
// records read by the compute kernel, and decodes them back for the software
// device.
package packing

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// Record sizes in bytes
const (
	NodeSize       = 48
	SphereSize     = 32
	LightSize      = 16
	LambertianSize = 16
	MetalSize      = 16
	GlassSize      = 4
	CameraSize     = 64
	GlobalsSize    = 32
)

type nodeRecord struct {
	Min   core.Vec3
	_     float32
	Max   core.Vec3
	_     float32
	Kind  uint32
	Index uint32
	_     [2]uint32
}

type sphereRecord struct {
	Position core.Vec3
	Radius   float32
	Kind     uint32
	Material uint32
	_        [2]uint32
}

type lightRecord struct {
	Colour core.Vec3
	_      float32
}

type lambertianRecord struct {
	Albedo core.Vec3
	_      float32
}

type metalRecord struct {
	Albedo    core.Vec3
	Roughness float32
}

type glassRecord struct {
	IR float32
}

// Camera is the camera uniform: the eye and the image plane spanned from its lower-left corner.
type Camera struct {
	Origin     core.Vec3
	_          float32
	Horizontal core.Vec3
	_          float32
	Vertical   core.Vec3
	_          float32
	LowerLeft  core.Vec3
	_          float32
}

// Globals is the per-dispatch uniform.
type Globals struct {
	Seed      uint32 // fresh random seed for this dispatch
	Samples   int32  // samples per pixel per dispatch
	Depth     int32  // maximum bounces
	Width     uint32
	Height    uint32
	RowTexels uint32 // padded row length of the accumulation buffer, in pixels
	_         [2]uint32
}

// SceneData holds every storage buffer of a scene, already encoded.
type SceneData struct {
	Nodes       []byte
	Spheres     []byte
	Lights      []byte
	Lambertians []byte
	Metals      []byte
	Glass       []byte
}

// NodeCount returns the number of flattened BVH nodes
func (d SceneData) NodeCount() int { return len(d.Nodes) / NodeSize }

// SphereCount returns the number of spheres
func (d SceneData) SphereCount() int { return len(d.Spheres) / SphereSize }

// Size returns the total number of bytes across all buffers
func (d SceneData) Size() int {
	return len(d.Nodes) + len(d.Spheres) + len(d.Lights) + len(d.Lambertians) + len(d.Metals) + len(d.Glass)
}

func encode(records any) []byte {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, records); err != nil {
		// Only reachable if a record type stops being fixed-size
		panic(fmt.Sprintf("packing: %v", err))
	}
	return buf.Bytes()
}

func decode[T any](data []byte, size int, what string) ([]T, error) {
	if len(data)%size != 0 {
		return nil, fmt.Errorf("packing: %s buffer length %d is not a multiple of %d", what, len(data), size)
	}
	out := make([]T, len(data)/size)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("packing: decode %s: %w", what, err)
	}
	return out, nil
}

// nonEmpty returns records, or a single zero record when empty; storage
// buffers may not be zero-sized.
func nonEmpty[T any](records []T) []T {
	if len(records) == 0 {
		return make([]T, 1)
	}
	return records
}

// EncodeNodes encodes a flattened hierarchy
func EncodeNodes(nodes []bvh.Node) []byte {
	records := make([]nodeRecord, len(nodes))
	for i, n := range nodes {
		records[i] = nodeRecord{Min: n.BBox.Min, Max: n.BBox.Max, Kind: uint32(n.Kind), Index: n.Index}
	}
	return encode(records)
}

// DecodeNodes is the inverse of EncodeNodes
func DecodeNodes(data []byte) ([]bvh.Node, error) {
	records, err := decode[nodeRecord](data, NodeSize, "node")
	if err != nil {
		return nil, err
	}
	nodes := make([]bvh.Node, len(records))
	for i, r := range records {
		nodes[i] = bvh.Node{BBox: core.NewAABB(r.Min, r.Max), Kind: bvh.NodeKind(r.Kind), Index: r.Index}
	}
	return nodes, nil
}

// EncodeSpheres encodes the sphere list
func EncodeSpheres(spheres []core.Sphere) []byte {
	records := make([]sphereRecord, len(spheres))
	for i, s := range spheres {
		records[i] = sphereRecord{Position: s.Position, Radius: s.Radius, Kind: uint32(s.Kind), Material: s.MaterialIndex}
	}
	return encode(records)
}

// DecodeSpheres is the inverse of EncodeSpheres
func DecodeSpheres(data []byte) ([]core.Sphere, error) {
	records, err := decode[sphereRecord](data, SphereSize, "sphere")
	if err != nil {
		return nil, err
	}
	spheres := make([]core.Sphere, len(records))
	for i, r := range records {
		spheres[i] = core.NewSphere(r.Position, r.Radius, core.MaterialKind(r.Kind), r.Material)
	}
	return spheres, nil
}

// EncodeLights encodes the light table
func EncodeLights(lights []scene.Light) []byte {
	records := make([]lightRecord, len(lights))
	for i, l := range lights {
		records[i] = lightRecord{Colour: l.Colour}
	}
	return encode(nonEmpty(records))
}

// DecodeLights is the inverse of EncodeLights
func DecodeLights(data []byte) ([]scene.Light, error) {
	records, err := decode[lightRecord](data, LightSize, "light")
	if err != nil {
		return nil, err
	}
	lights := make([]scene.Light, len(records))
	for i, r := range records {
		lights[i] = scene.Light{Colour: r.Colour}
	}
	return lights, nil
}

// EncodeLambertians encodes the diffuse material table
func EncodeLambertians(mats []scene.Lambertian) []byte {
	records := make([]lambertianRecord, len(mats))
	for i, m := range mats {
		records[i] = lambertianRecord{Albedo: m.Albedo}
	}
	return encode(nonEmpty(records))
}

// DecodeLambertians is the inverse of EncodeLambertians
func DecodeLambertians(data []byte) ([]scene.Lambertian, error) {
	records, err := decode[lambertianRecord](data, LambertianSize, "lambertian")
	if err != nil {
		return nil, err
	}
	mats := make([]scene.Lambertian, len(records))
	for i, r := range records {
		mats[i] = scene.Lambertian{Albedo: r.Albedo}
	}
	return mats, nil
}

// EncodeMetals encodes the metal material table
func EncodeMetals(mats []scene.Metal) []byte {
	records := make([]metalRecord, len(mats))
	for i, m := range mats {
		records[i] = metalRecord{Albedo: m.Albedo, Roughness: m.Roughness}
	}
	return encode(nonEmpty(records))
}

// DecodeMetals is the inverse of EncodeMetals
func DecodeMetals(data []byte) ([]scene.Metal, error) {
	records, err := decode[metalRecord](data, MetalSize, "metal")
	if err != nil {
		return nil, err
	}
	mats := make([]scene.Metal, len(records))
	for i, r := range records {
		mats[i] = scene.Metal{Albedo: r.Albedo, Roughness: r.Roughness}
	}
	return mats, nil
}

// EncodeGlass encodes the glass material table
func EncodeGlass(mats []scene.Glass) []byte {
	records := make([]glassRecord, len(mats))
	for i, m := range mats {
		records[i] = glassRecord{IR: m.IR}
	}
	return encode(nonEmpty(records))
}

// DecodeGlass is the inverse of EncodeGlass
func DecodeGlass(data []byte) ([]scene.Glass, error) {
	records, err := decode[glassRecord](data, GlassSize, "glass")
	if err != nil {
		return nil, err
	}
	mats := make([]scene.Glass, len(records))
	for i, r := range records {
		mats[i] = scene.Glass{IR: r.IR}
	}
	return mats, nil
}

// PackScene encodes a flattened hierarchy together with the scene it was built from
func PackScene(nodes []bvh.Node, s *scene.Scene) SceneData {
	return SceneData{
		Nodes:       EncodeNodes(nodes),
		Spheres:     EncodeSpheres(s.Spheres),
		Lights:      EncodeLights(s.Lights),
		Lambertians: EncodeLambertians(s.Lambertians),
		Metals:      EncodeMetals(s.Metals),
		Glass:       EncodeGlass(s.Glass),
	}
}

// Bytes encodes the camera uniform
func (c Camera) Bytes() []byte { return encode(c) }

// Bytes encodes the globals uniform
func (g Globals) Bytes() []byte { return encode(g) }

// DecodeCamera is the inverse of Camera.Bytes
func DecodeCamera(data []byte) (Camera, error) {
	cams, err := decode[Camera](data, CameraSize, "camera")
	if err != nil {
		return Camera{}, err
	}
	if len(cams) != 1 {
		return Camera{}, fmt.Errorf("packing: expected one camera, got %d", len(cams))
	}
	return cams[0], nil
}

// DecodeGlobals is the inverse of Globals.Bytes
func DecodeGlobals(data []byte) (Globals, error) {
	gs, err := decode[Globals](data, GlobalsSize, "globals")
	if err != nil {
		return Globals{}, err
	}
	if len(gs) != 1 {
		return Globals{}, fmt.Errorf("packing: expected one globals record, got %d", len(gs))
	}
	return gs[0], nil
}
