package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/df07/go-wgpu-pathtracer/cmd"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

var logger = log.New("pathtracer")

// renderFlags are shared by the render and serve commands
func renderFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "JSON render config file; flags override its values",
		},
		cli.UintFlag{
			Name:  "width",
			Usage: "frame width (default 800)",
		},
		cli.UintFlag{
			Name:  "height",
			Usage: "frame height (default 450)",
		},
		cli.StringFlag{
			Name:  "settings, s",
			Usage: "JSON settings file with samples per frame and max depth",
		},
		cli.StringFlag{
			Name:  "out, o",
			Usage: "image filename; .png, .webp, .tga, .bmp and .tiff are supported",
		},
		cli.StringFlag{
			Name:  "device, d",
			Usage: "compute device: software or webgpu (default software)",
		},
		cli.Int64Flag{
			Name:  "seed",
			Usage: "seed for the BVH build and randomised built-in scenes",
		},
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "pathtracer"
	app.Usage = "progressively path trace sphere scenes on a compute device"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render a fixed number of frames and save the image",
			Description: `
Load a JSON scene file (or a built-in scene ID), build its BVH, upload it to
the compute device and accumulate the requested number of frames. The averaged,
gamma corrected image is written to the output file.`,
			ArgsUsage: "SCENE.json",
			Flags: append(renderFlags(), cli.IntFlag{
				Name:  "frames, f",
				Usage: "number of frames to accumulate (default 100)",
			}),
			Action: cmd.RenderScene,
		},
		{
			Name:  "serve",
			Usage: "render continuously with an HTTP control surface",
			Description: `
Accumulate frames until interrupted. The HTTP API can reload the scene and
settings files, move the camera, resize the target, save the image and
return a preview of the current accumulation.`,
			ArgsUsage: "SCENE.json",
			Flags: append(renderFlags(),
				cli.StringFlag{
					Name:  "addr",
					Value: "localhost:8080",
					Usage: "address to listen on",
				},
				cli.StringFlag{
					Name:  "scenes",
					Value: "scenes",
					Usage: "directory listed by /api/scenes",
				},
				cli.DurationFlag{
					Name:  "frame-delay",
					Usage: "pause between frames",
				},
			),
			Action: cmd.Serve,
		},
		{
			Name:      "gen-scene",
			Usage:     "write a generated scene to a JSON file",
			ArgsUsage: "OUT.json",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "builtin, b",
					Value: "random",
					Usage: "built-in scene to write: random, grid or default",
				},
				cli.Int64Flag{
					Name:  "seed",
					Usage: "random seed (default: current time)",
				},
				cli.IntFlag{
					Name:  "size",
					Value: scene.DefaultRandomSize,
					Usage: "half extent of the random sphere grid",
				},
			},
			Action: cmd.GenerateScene,
		},
		{
			Name:      "bvh",
			Usage:     "build the BVH of a scene and print its statistics",
			ArgsUsage: "SCENE.json",
			Flags: []cli.Flag{
				cli.Int64Flag{
					Name:  "seed",
					Usage: "seed for the child order",
				},
				cli.BoolFlag{
					Name:  "nodes",
					Usage: "also print every flattened node",
				},
			},
			Action: cmd.InspectBVH,
		},
		{
			Name:  "scenes",
			Usage: "list built-in scenes and scene files",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "dir",
					Value: "scenes",
					Usage: "directory to scan for JSON scene files",
				},
			},
			Action: cmd.ListScenes,
		},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
