package renderer

import (
	"errors"
	"fmt"

	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
)

var logger = log.New("renderer")

// ErrNoSamples is returned when saving before any frame was dispatched
var ErrNoSamples = errors.New("renderer: no samples accumulated")

// SeedSource supplies one fresh seed per frame. *rand.Rand satisfies it.
type SeedSource interface {
	Uint32() uint32
}

// FrameParams is everything a dispatch needs besides the seed
type FrameParams struct {
	Camera             packing.Camera
	Width, Height      uint32
	SamplesPerDispatch int32
	Depth              int32
}

// Accumulator drives progressive accumulation on a device. Each frame adds
// SamplesPerDispatch samples per pixel to the target; a dirty accumulator
// clears the target before its next frame.
type Accumulator struct {
	device  device.Device
	seeds   SeedSource
	params  FrameParams
	samples int32 // dispatches since the last clear, -1 before the first frame
	dirty   bool
	clears  int
}

// NewAccumulator creates an accumulator that starts dirty
func NewAccumulator(dev device.Device, seeds SeedSource, params FrameParams) *Accumulator {
	return &Accumulator{
		device:  dev,
		seeds:   seeds,
		params:  params,
		samples: -1,
		dirty:   true,
	}
}

// SetParams replaces the frame parameters. It does not mark the accumulator dirty.
func (a *Accumulator) SetParams(params FrameParams) {
	a.params = params
}

// Params returns the current frame parameters
func (a *Accumulator) Params() FrameParams {
	return a.params
}

// MarkDirty schedules a clear before the next frame
func (a *Accumulator) MarkDirty() {
	a.dirty = true
}

// Discard marks the target dirty and drops its sample count. Used when the
// target was reallocated and no longer holds the accumulated frames.
func (a *Accumulator) Discard() {
	a.dirty = true
	a.samples = -1
}

// Dirty reports whether the next frame will clear the target
func (a *Accumulator) Dirty() bool {
	return a.dirty
}

// Samples returns the number of dispatches accumulated since the last clear
func (a *Accumulator) Samples() int32 {
	return a.samples
}

// Clears returns how many times the target has been cleared
func (a *Accumulator) Clears() int {
	return a.clears
}

// TotalSamples returns the per-pixel sample count held in the target
func (a *Accumulator) TotalSamples() int64 {
	if a.samples <= 0 {
		return 0
	}
	return int64(a.samples) * int64(a.params.SamplesPerDispatch)
}

// RenderFrame submits one frame. A failed submission leaves the sample count
// untouched so it always equals the number of dispatches the device accepted.
func (a *Accumulator) RenderFrame() error {
	if a.dirty {
		if err := a.device.ClearTarget(); err != nil {
			return fmt.Errorf("renderer: clear target: %w", err)
		}
		a.samples = 0
		a.dirty = false
		a.clears++
		logger.Debugf("Accumulation reset (%dx%d)", a.params.Width, a.params.Height)
	}

	layout := device.NewReadbackLayout(a.params.Width, a.params.Height)
	globals := packing.Globals{
		Seed:      a.seeds.Uint32(),
		Samples:   a.params.SamplesPerDispatch,
		Depth:     a.params.Depth,
		Width:     a.params.Width,
		Height:    a.params.Height,
		RowTexels: layout.RowTexels(),
	}
	if err := a.device.Dispatch(a.params.Camera, globals); err != nil {
		return fmt.Errorf("renderer: dispatch: %w", err)
	}
	a.samples++
	return nil
}

// StartSave queues a copy of the target and returns without waiting for it
func (a *Accumulator) StartSave() (*SaveHandle, error) {
	if a.samples <= 0 {
		return nil, ErrNoSamples
	}
	readback, err := a.device.CopyTarget()
	if err != nil {
		return nil, fmt.Errorf("renderer: copy target: %w", err)
	}
	return &SaveHandle{
		readback:           readback,
		layout:             readback.Layout(),
		frames:             a.samples,
		samplesPerDispatch: a.params.SamplesPerDispatch,
	}, nil
}
