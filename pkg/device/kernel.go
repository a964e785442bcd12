package device

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

const (
	rayTMin = 0.001
	rayTMax = 1e30
)

var (
	skyTop    = core.NewVec3(0.5, 0.7, 1.0)
	skyBottom = core.NewVec3(1.0, 1.0, 1.0)
)

// kernelScene is the decoded form of the uploaded storage buffers
type kernelScene struct {
	nodes       []bvh.Node
	spheres     []core.Sphere
	lights      []scene.Light
	lambertians []scene.Lambertian
	metals      []scene.Metal
	glass       []scene.Glass
}

func decodeScene(data packing.SceneData) (*kernelScene, error) {
	var (
		ks  kernelScene
		err error
	)
	if ks.nodes, err = packing.DecodeNodes(data.Nodes); err != nil {
		return nil, err
	}
	if ks.spheres, err = packing.DecodeSpheres(data.Spheres); err != nil {
		return nil, err
	}
	if ks.lights, err = packing.DecodeLights(data.Lights); err != nil {
		return nil, err
	}
	if ks.lambertians, err = packing.DecodeLambertians(data.Lambertians); err != nil {
		return nil, err
	}
	if ks.metals, err = packing.DecodeMetals(data.Metals); err != nil {
		return nil, err
	}
	if ks.glass, err = packing.DecodeGlass(data.Glass); err != nil {
		return nil, err
	}

	for i, n := range ks.nodes {
		if n.Kind == bvh.Object && int(n.Index) >= len(ks.spheres) {
			return nil, fmt.Errorf("device: node %d references sphere %d of %d", i, n.Index, len(ks.spheres))
		}
		if n.Kind == bvh.Escape && int(n.Index) > len(ks.nodes) {
			return nil, fmt.Errorf("device: node %d escapes to %d past %d nodes", i, n.Index, len(ks.nodes))
		}
	}
	return &ks, nil
}

// newWorkgroupGrid splits the target into WorkgroupSize x WorkgroupSize
// regions in dispatch order, clipped to the image bounds
func newWorkgroupGrid(width, height uint32) []image.Rectangle {
	var groups []image.Rectangle
	for gy := uint32(0); gy < WorkgroupCount(height); gy++ {
		for gx := uint32(0); gx < WorkgroupCount(width); gx++ {
			x0, y0 := int(gx*WorkgroupSize), int(gy*WorkgroupSize)
			bounds := image.Rect(x0, y0, x0+WorkgroupSize, y0+WorkgroupSize)
			groups = append(groups, bounds.Intersect(image.Rect(0, 0, int(width), int(height))))
		}
	}
	return groups
}

// renderWorkgroup accumulates globals.Samples samples into every pixel of bounds
func (ks *kernelScene) renderWorkgroup(target []float32, layout ReadbackLayout, cam packing.Camera, g packing.Globals, bounds image.Rectangle) {
	width, height := float32(layout.Width), float32(layout.Height)
	rowTexels := int(layout.RowTexels())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rng := newPixelRNG(g.Seed, uint32(y)*layout.Width+uint32(x))

			var colour core.Vec3
			for s := int32(0); s < g.Samples; s++ {
				u := (float32(x) + rng.float()) / width
				v := 1 - (float32(y)+rng.float())/height
				dir := cam.LowerLeft.Add(cam.Horizontal.Mul(u)).Add(cam.Vertical.Mul(v)).Sub(cam.Origin)
				colour = colour.Add(ks.trace(core.NewRay(cam.Origin, dir.Normalize()), g.Depth, rng))
			}

			i := (y*rowTexels + x) * 4
			target[i+0] += colour[0]
			target[i+1] += colour[1]
			target[i+2] += colour[2]
			target[i+3] += float32(g.Samples)
		}
	}
}

// trace follows one path for at most depth bounces and returns its radiance
func (ks *kernelScene) trace(ray core.Ray, depth int32, rng *pixelRNG) core.Vec3 {
	throughput := core.Splat(1)
	var radiance core.Vec3

	for bounce := int32(0); bounce < depth; bounce++ {
		index, t, ok := bvh.ClosestHit(ks.nodes, ks.spheres, ray, rayTMin, rayTMax)
		if !ok {
			unit := ray.Direction.Normalize()
			a := 0.5 * (unit.Y() + 1)
			sky := skyBottom.Mul(1 - a).Add(skyTop.Mul(a))
			return radiance.Add(core.MulVec(throughput, sky))
		}

		sphere := ks.spheres[index]
		point := ray.At(t)
		outward := sphere.Normal(point)
		frontFace := ray.Direction.Dot(outward) < 0
		normal := outward
		if !frontFace {
			normal = outward.Mul(-1)
		}

		switch sphere.Kind {
		case core.Light:
			return radiance.Add(core.MulVec(throughput, ks.lights[sphere.MaterialIndex].Colour))

		case core.Lambertian:
			dir := normal.Add(rng.unitVector())
			if core.NearZero(dir) {
				dir = normal
			}
			throughput = core.MulVec(throughput, ks.lambertians[sphere.MaterialIndex].Albedo)
			ray = core.NewRay(point, dir.Normalize())

		case core.Metal:
			m := ks.metals[sphere.MaterialIndex]
			reflected := core.Reflect(ray.Direction.Normalize(), normal).Add(rng.inUnitSphere().Mul(m.Roughness))
			if reflected.Dot(normal) <= 0 {
				return radiance
			}
			throughput = core.MulVec(throughput, m.Albedo)
			ray = core.NewRay(point, reflected.Normalize())

		case core.Glass:
			ir := ks.glass[sphere.MaterialIndex].IR
			ratio := ir
			if frontFace {
				ratio = 1 / ir
			}
			unit := ray.Direction.Normalize()
			cosTheta := math32.Min(unit.Mul(-1).Dot(normal), 1)
			sinTheta := math32.Sqrt(math32.Max(0, 1-cosTheta*cosTheta))

			var dir core.Vec3
			if ratio*sinTheta > 1 || reflectance(cosTheta, ratio) > rng.float() {
				dir = core.Reflect(unit, normal)
			} else {
				dir = core.Refract(unit, normal, ratio)
			}
			ray = core.NewRay(point, dir.Normalize())

		default:
			return radiance
		}
	}

	return radiance
}

// reflectance is Schlick's approximation
func reflectance(cosine, ratio float32) float32 {
	r0 := (1 - ratio) / (1 + ratio)
	r0 = r0 * r0
	return r0 + (1-r0)*math32.Pow(1-cosine, 5)
}
