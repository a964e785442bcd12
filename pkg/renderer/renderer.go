package renderer

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/df07/go-wgpu-pathtracer/pkg/config"
	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

// ErrInvalidSize is returned when resizing to an empty target
var ErrInvalidSize = errors.New("renderer: invalid target size")

// Options configures a new Renderer
type Options struct {
	Width, Height uint32
	Settings      config.Settings
	Seed          int64      // seeds the BVH child order
	Seeds         SeedSource // per-frame seeds; derived from Seed when nil
}

// Renderer owns the scene, camera and settings of a device and turns every
// change into a dirty accumulator. It is not safe for concurrent use.
type Renderer struct {
	device   device.Device
	acc      *Accumulator
	bvhRNG   *rand.Rand
	scene    *scene.Scene
	buffers  *SceneBuffers
	camera   scene.CameraSettings
	settings config.Settings
	width    uint32
	height   uint32

	clock      func() time.Time
	started    time.Time
	seenClears int
}

// New allocates the target, uploads the scene and returns a dirty renderer
func New(dev device.Device, s *scene.Scene, opts Options) (*Renderer, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}

	seeds := opts.Seeds
	if seeds == nil {
		seeds = rand.New(rand.NewSource(opts.Seed + 1))
	}

	r := &Renderer{
		device:   dev,
		bvhRNG:   rand.New(rand.NewSource(opts.Seed)),
		settings: opts.Settings,
		width:    opts.Width,
		height:   opts.Height,
		clock:    time.Now,
	}

	if err := dev.Resize(opts.Width, opts.Height); err != nil {
		return nil, fmt.Errorf("renderer: resize: %w", err)
	}
	buffers, err := UploadScene(dev, s, r.bvhRNG)
	if err != nil {
		return nil, err
	}
	r.scene = s
	r.buffers = buffers
	r.camera = ClampPitch(s.Camera)
	r.acc = NewAccumulator(dev, seeds, r.frameParams())
	return r, nil
}

func (r *Renderer) frameParams() FrameParams {
	return FrameParams{
		Camera:             NewCamera(r.camera, Aspect(r.width, r.height)),
		Width:              r.width,
		Height:             r.height,
		SamplesPerDispatch: r.settings.Samples,
		Depth:              r.settings.Depth,
	}
}

func (r *Renderer) invalidate() {
	r.acc.SetParams(r.frameParams())
	r.acc.MarkDirty()
}

// ReloadScene replaces the scene and its camera. On error the previous
// scene stays active.
func (r *Renderer) ReloadScene(s *scene.Scene) error {
	buffers, err := UploadScene(r.device, s, r.bvhRNG)
	if err != nil {
		return err
	}
	r.scene = s
	r.buffers = buffers
	r.camera = ClampPitch(s.Camera)
	r.invalidate()
	return nil
}

// ReloadSettings replaces the samples per dispatch and bounce depth
func (r *Renderer) ReloadSettings(settings config.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	r.settings = settings
	r.invalidate()
	logger.Infof("Settings reloaded: %d samples/dispatch, depth %d", settings.Samples, settings.Depth)
	return nil
}

// Resize reallocates the target for a new image size
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if err := r.device.Resize(width, height); err != nil {
		return fmt.Errorf("renderer: resize: %w", err)
	}
	r.width, r.height = width, height
	r.invalidate()
	r.acc.Discard()
	logger.Infof("Resized to %dx%d", width, height)
	return nil
}

// SetCamera moves the camera. Pitch is clamped to MaxPitch.
func (r *Renderer) SetCamera(camera scene.CameraSettings) {
	r.camera = ClampPitch(camera)
	r.invalidate()
}

// RenderFrame accumulates one more dispatch
func (r *Renderer) RenderFrame() error {
	if err := r.acc.RenderFrame(); err != nil {
		return err
	}
	if clears := r.acc.Clears(); clears != r.seenClears {
		r.seenClears = clears
		r.started = r.clock()
	}
	return nil
}

// StartSave queues a copy of the target. It returns ErrNoSamples after a
// resize until the next frame has been rendered.
func (r *Renderer) StartSave() (*SaveHandle, error) {
	return r.acc.StartSave()
}

// Save copies the target and writes it to path, blocking until done
func (r *Renderer) Save(path string) error {
	handle, err := r.StartSave()
	if err != nil {
		return err
	}
	return handle.Finish(handle.TotalSamples(), path)
}

// Stats returns the accumulation statistics
func (r *Renderer) Stats() RenderStats {
	stats := RenderStats{
		Width:              r.width,
		Height:             r.height,
		SamplesPerDispatch: r.settings.Samples,
		TotalSamples:       r.acc.TotalSamples(),
		Clears:             r.acc.Clears(),
		Dirty:              r.acc.Dirty(),
	}
	if frames := r.acc.Samples(); frames > 0 {
		stats.Frames = frames
		stats.Elapsed = r.clock().Sub(r.started)
	}
	return stats
}

// Scene returns the active scene
func (r *Renderer) Scene() *scene.Scene { return r.scene }

// Buffers returns the flattened BVH and packed tables of the active scene
func (r *Renderer) Buffers() *SceneBuffers { return r.buffers }

// Camera returns the active camera settings
func (r *Renderer) Camera() scene.CameraSettings { return r.camera }

// Settings returns the active render settings
func (r *Renderer) Settings() config.Settings { return r.settings }

// Size returns the target size
func (r *Renderer) Size() (uint32, uint32) { return r.width, r.height }
