package cmd

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/df07/go-wgpu-pathtracer/pkg/bvh"
	"github.com/df07/go-wgpu-pathtracer/pkg/renderer"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// GenerateScene writes a built-in scene, by default a random one, to a JSON file.
func GenerateScene(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing output scene file argument")
	}
	out := ctx.Args().First()

	seed := ctx.Int64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var sc *scene.Scene
	switch id := ctx.String("builtin"); id {
	case "random":
		sc = scene.NewRandomScene(seed, ctx.Int("size"))
	default:
		var ok bool
		if sc, ok = scene.Builtin(id, seed); !ok {
			return fmt.Errorf("unknown built-in scene %q", id)
		}
	}

	if err := scene.Save(out, sc); err != nil {
		return err
	}
	logger.Noticef("wrote %s (%d spheres, seed %d)", out, len(sc.Spheres), seed)
	return nil
}

// ListScenes prints the built-in scenes and the scene files found in a directory.
func ListScenes(ctx *cli.Context) error {
	setupLogging(ctx)

	response, err := scene.ListAllScenes(ctx.String("dir"))
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Group", "ID", "Name", "Spheres"})
	for _, group := range response.Groups {
		for _, info := range group.Scenes {
			table.Append([]string{group.Name, info.ID, info.DisplayName, fmt.Sprint(info.Spheres)})
		}
	}
	table.Render()
	return nil
}

// InspectBVH builds and flattens the BVH of a scene and prints its statistics.
func InspectBVH(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	seed := ctx.Int64("seed")
	sc, err := scene.Open(ctx.Args().First(), seed)
	if err != nil {
		return err
	}

	buffers, err := renderer.BuildSceneBuffers(sc, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	bvh.WriteTable(ctx.App.Writer, len(sc.Spheres), buffers.Stats, buffers.Nodes)

	if ctx.Bool("nodes") {
		for i, n := range buffers.Nodes {
			fmt.Fprintf(ctx.App.Writer, "%4d %-6s %4d min=%v max=%v\n", i, n.Kind, n.Index, n.BBox.Min, n.BBox.Max)
		}
	}
	return nil
}
