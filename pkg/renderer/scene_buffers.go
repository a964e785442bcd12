package renderer

import (
	"fmt"
	"math/rand"

	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// SceneBuffers holds the flattened BVH and packed tables for one scene
type SceneBuffers struct {
	Nodes []bvh.Node
	Data  packing.SceneData
	Stats bvh.Stats
}

// BuildSceneBuffers validates a scene, builds and flattens its BVH and packs
// every table. A single sphere gets the degenerate two-node array.
func BuildSceneBuffers(s *scene.Scene, rng *rand.Rand) (*SceneBuffers, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	buffers := &SceneBuffers{}
	switch len(s.Spheres) {
	case 0:
		return nil, fmt.Errorf("%w: scene has no spheres", bvh.ErrInvalidScene)
	case 1:
		buffers.Nodes = bvh.Degenerate(s.Spheres[0])
		buffers.Stats = bvh.Stats{Nodes: 1, Leaves: 1, MaxDepth: 0}
	default:
		tree, err := bvh.Build(s.Spheres, rng)
		if err != nil {
			return nil, err
		}
		buffers.Nodes = bvh.Flatten(tree)
		buffers.Stats = tree.Stats()
	}
	buffers.Data = packing.PackScene(buffers.Nodes, s)
	return buffers, nil
}

// UploadScene builds the buffers for a scene and uploads them to the device
func UploadScene(dev device.Device, s *scene.Scene, rng *rand.Rand) (*SceneBuffers, error) {
	buffers, err := BuildSceneBuffers(s, rng)
	if err != nil {
		return nil, err
	}
	if err := dev.UploadScene(buffers.Data); err != nil {
		return nil, fmt.Errorf("renderer: upload scene: %w", err)
	}
	logger.Infof("Uploaded %d spheres, %d nodes (%d bytes)",
		len(s.Spheres), len(buffers.Nodes), buffers.Data.Size())
	return buffers, nil
}
