package server

import (
	"net/http"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/labstack/echo/v4"

	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/core"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
	"github.com/df07/go-wgpu-pathtracer/pkg/renderer"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// minHitDistance matches the kernel's self-intersection epsilon
const minHitDistance = 0.001

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool                   `json:"hit"`
	Sphere       int                    `json:"sphere"`
	MaterialType string                 `json:"materialType"`
	Point        [3]float32             `json:"point"`
	Normal       [3]float32             `json:"normal"`
	Distance     float32                `json:"distance"`
	Properties   map[string]interface{} `json:"properties"`
}

// materialInfo describes the material a sphere refers to
func materialInfo(sc *scene.Scene, sphere core.Sphere) map[string]interface{} {
	properties := map[string]interface{}{"index": sphere.MaterialIndex}
	i := int(sphere.MaterialIndex)

	switch sphere.Kind {
	case core.Light:
		properties["colour"] = sc.Lights[i].Colour
	case core.Lambertian:
		properties["albedo"] = sc.Lambertians[i].Albedo
	case core.Metal:
		properties["albedo"] = sc.Metals[i].Albedo
		properties["roughness"] = sc.Metals[i].Roughness
	case core.Glass:
		properties["ir"] = sc.Glass[i].IR
	}
	return properties
}

// pixelRay returns the ray through the centre of a pixel
func pixelRay(cam packing.Camera, width, height uint32, x, y int) core.Ray {
	u := (float32(x) + 0.5) / float32(width)
	v := 1 - (float32(y)+0.5)/float32(height)
	target := cam.LowerLeft.Add(cam.Horizontal.Mul(u)).Add(cam.Vertical.Mul(v))
	return core.NewRay(cam.Origin, target.Sub(cam.Origin))
}

// inspectPixel casts a ray through a pixel and describes the closest sphere it hits
func inspectPixel(r *renderer.Renderer, x, y int) InspectResponse {
	width, height := r.Size()
	cam := renderer.NewCamera(r.Camera(), renderer.Aspect(width, height))
	ray := pixelRay(cam, width, height, x, y)

	sc := r.Scene()
	index, t, hit := bvh.ClosestHit(r.Buffers().Nodes, sc.Spheres, ray, minHitDistance, math32.MaxFloat32)
	if !hit {
		return InspectResponse{Hit: false, Sphere: -1}
	}

	sphere := sc.Spheres[index]
	point := ray.At(t)
	normal := sphere.Normal(point)
	properties := materialInfo(sc, sphere)
	properties["position"] = sphere.Position
	properties["radius"] = sphere.Radius

	return InspectResponse{
		Hit:          true,
		Sphere:       int(index),
		MaterialType: sphere.Kind.String(),
		Point:        point,
		Normal:       normal,
		Distance:     t,
		Properties:   properties,
	}
}

// handleInspect handles ray casting inspection requests
func (s *Server) handleInspect(c echo.Context) error {
	x, err := strconv.Atoi(c.QueryParam("x"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid x coordinate")
	}
	y, err := strconv.Atoi(c.QueryParam("y"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid y coordinate")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	width, height := s.renderer.Size()
	if x < 0 || x >= int(width) || y < 0 || y >= int(height) {
		return echo.NewHTTPError(http.StatusBadRequest, "pixel coordinates out of bounds")
	}
	return c.JSON(http.StatusOK, inspectPixel(s.renderer, x, y))
}
