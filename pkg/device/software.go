package device

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
)

var logger = log.New("device")

// queueDepth is how many commands may be in flight before submission blocks
const queueDepth = 64

// Software runs the path tracing kernel on the CPU. A single queue goroutine
// executes commands in submission order, one workgroup after another, so it
// behaves like a GPU queue: submissions return immediately and only
// Readback.Map waits for completion.
type Software struct {
	mu       sync.Mutex
	commands chan func()
	done     chan struct{}
	closed   bool

	// host-side view of queued state, used to reject invalid submissions
	allocated bool
	hasScene  bool
	layout    ReadbackLayout

	// owned by the queue goroutine
	scene        *kernelScene
	target       []float32
	targetLayout ReadbackLayout
	workgroups   []image.Rectangle

	dispatches atomic.Int64
}

// NewSoftware creates a software device and starts its queue
func NewSoftware() *Software {
	d := &Software{
		commands: make(chan func(), queueDepth),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Software) run() {
	defer close(d.done)
	for cmd := range d.commands {
		cmd()
	}
}

// submit queues cmd; the caller must hold d.mu
func (d *Software) submit(cmd func()) error {
	if d.closed {
		return ErrDeviceLost
	}
	d.commands <- cmd
	return nil
}

// UploadScene validates and queues the new scene buffers
func (d *Software) UploadScene(data packing.SceneData) error {
	ks, err := decodeScene(data)
	if err != nil {
		return fmt.Errorf("device: upload scene: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.submit(func() { d.scene = ks }); err != nil {
		return err
	}
	d.hasScene = true
	logger.Debugf("software device: queued scene with %d nodes and %d spheres", len(ks.nodes), len(ks.spheres))
	return nil
}

// Resize queues reallocation of the accumulation target
func (d *Software) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("device: invalid target size %dx%d", width, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	layout := NewReadbackLayout(width, height)
	if err := d.submit(func() {
		d.targetLayout = layout
		d.target = make([]float32, int(layout.Size()/4))
		d.workgroups = newWorkgroupGrid(width, height)
	}); err != nil {
		return err
	}
	d.allocated = true
	d.layout = layout
	return nil
}

// ClearTarget queues zeroing of the accumulation target
func (d *Software) ClearTarget() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.allocated {
		return ErrTargetNotAllocated
	}
	return d.submit(func() {
		clear(d.target)
	})
}

// Dispatch queues one kernel invocation over the whole target
func (d *Software) Dispatch(camera packing.Camera, globals packing.Globals) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.allocated {
		return ErrTargetNotAllocated
	}
	if !d.hasScene {
		return ErrNoScene
	}
	return d.submit(func() {
		for _, bounds := range d.workgroups {
			d.scene.renderWorkgroup(d.target, d.targetLayout, camera, globals, bounds)
		}
		d.dispatches.Add(1)
	})
}

// CopyTarget queues a copy of the target into a readback buffer
func (d *Software) CopyTarget() (Readback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.allocated {
		return nil, ErrTargetNotAllocated
	}

	rb := &softwareReadback{ready: make(chan struct{}), layout: d.layout}
	if err := d.submit(func() {
		rb.data = encodeTarget(d.target)
		close(rb.ready)
	}); err != nil {
		return nil, err
	}
	return rb, nil
}

// Flush blocks until every queued command has executed
func (d *Software) Flush() error {
	d.mu.Lock()
	fence := make(chan struct{})
	err := d.submit(func() { close(fence) })
	d.mu.Unlock()
	if err != nil {
		return err
	}
	<-fence
	return nil
}

// Dispatches returns the number of dispatches executed so far
func (d *Software) Dispatches() int64 {
	return d.dispatches.Load()
}

// Close drains the queue and stops the device
func (d *Software) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.commands)
	d.mu.Unlock()

	<-d.done
	return nil
}

// softwareReadback is filled in by the queue goroutine
type softwareReadback struct {
	ready  chan struct{}
	layout ReadbackLayout
	data   []byte
}

// Map waits for the copy to execute
func (r *softwareReadback) Map() ([]byte, error) {
	<-r.ready
	if r.data == nil {
		return nil, ErrMappingFailed
	}
	return r.data, nil
}

// Layout returns the target layout at the time the copy was queued
func (r *softwareReadback) Layout() ReadbackLayout {
	return r.layout
}
