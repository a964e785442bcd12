package cmd

import (
	"bytes"
	"errors"
	"time"

	"github.com/urfave/cli"

	"github.com/df07/go-wgpu-pathtracer/pkg/config"
	"github.com/df07/go-wgpu-pathtracer/pkg/renderer"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// resolveConfig merges the optional config file, the scene argument and CLI flags
func resolveConfig(ctx *cli.Context) (config.RenderConfig, error) {
	var cfg config.RenderConfig
	if path := ctx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := config.Flags{
		Scene:    ctx.Args().First(),
		Width:    ctx.Uint("width"),
		Height:   ctx.Uint("height"),
		Frames:   ctx.Int("frames"),
		Output:   ctx.String("out"),
		Device:   ctx.String("device"),
		Seed:     ctx.Int64("seed"),
		Settings: ctx.String("settings"),
	}
	if err := cfg.Resolve(flags); err != nil {
		return cfg, err
	}
	if cfg.Scene == "" {
		return cfg, errors.New("missing scene file argument")
	}
	return cfg, nil
}

// setupRenderer opens the scene and device named by cfg and uploads the scene
func setupRenderer(cfg config.RenderConfig) (*renderer.Renderer, func(), error) {
	sc, err := scene.Open(cfg.Scene, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	dev, err := openDevice(cfg.Device)
	if err != nil {
		return nil, nil, err
	}
	closeDevice := func() {
		if err := dev.Close(); err != nil {
			logger.Warningf("closing device: %v", err)
		}
	}

	start := time.Now()
	r, err := renderer.New(dev, sc, renderer.Options{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Settings: cfg.Settings,
		Seed:     cfg.Seed,
	})
	if err != nil {
		closeDevice()
		return nil, nil, err
	}
	logger.Infof("scene %s ready in %d ms (%d spheres)", cfg.Scene, time.Since(start).Milliseconds(), len(sc.Spheres))
	return r, closeDevice, nil
}

// RenderScene renders a fixed number of frames and saves the result.
func RenderScene(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := resolveConfig(ctx)
	if err != nil {
		return err
	}

	r, closeDevice, err := setupRenderer(cfg)
	if err != nil {
		return err
	}
	defer closeDevice()

	logger.Noticef("rendering %s: %d frames at %dx%d, %d samples/frame, depth %d",
		cfg.Scene, cfg.Frames, cfg.Width, cfg.Height, cfg.Settings.Samples, cfg.Settings.Depth)

	step := cfg.Frames / 10
	if step == 0 {
		step = 1
	}
	for frame := 1; frame <= cfg.Frames; frame++ {
		if err := r.RenderFrame(); err != nil {
			return err
		}
		if frame%step == 0 {
			logger.Infof("submitted frame %d/%d", frame, cfg.Frames)
		}
	}

	if err := r.Save(cfg.Output); err != nil {
		return err
	}

	displayRenderStats(r.Stats())
	return nil
}

func displayRenderStats(stats renderer.RenderStats) {
	var buf bytes.Buffer
	stats.WriteTable(&buf)
	logger.Noticef("render statistics\n%s", buf.String())
}
