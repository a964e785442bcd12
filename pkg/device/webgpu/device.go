// Package webgpu runs the path tracing kernel on a real GPU through WebGPU.
package webgpu

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/log"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
)

//go:embed shader.wgsl
var shaderSource string

var logger = log.New("webgpu")

// Binding slots of the kernel's single bind group
const (
	bindingNodes = iota
	bindingSpheres
	bindingLights
	bindingLambertians
	bindingMetals
	bindingGlass
	bindingCamera
	bindingGlobals
	bindingAccum
	bindingCount
)

// Device is a device.Device backed by a WebGPU compute pipeline. The
// accumulation target is a storage buffer whose rows are already padded to
// the copy alignment, so readback is a plain buffer copy.
type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline

	scene   [bindingCamera]*wgpu.Buffer // nodes through glass
	camera  *wgpu.Buffer
	globals *wgpu.Buffer
	accum   *wgpu.Buffer

	bindGroup    *wgpu.BindGroup
	targetLayout device.ReadbackLayout
	closed       bool
}

var _ device.Device = (*Device)(nil)

// New requests a high-performance adapter and builds the compute pipeline
func New() (*Device, error) {
	d := &Device{instance: wgpu.CreateInstance(nil)}

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.instance.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", err)
	}
	d.adapter = adapter

	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Path Tracer Device"})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.createPipeline(); err != nil {
		d.release()
		return nil, err
	}

	if d.camera, err = d.createBuffer("Camera", packing.CameraSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		d.release()
		return nil, err
	}
	if d.globals, err = d.createBuffer("Globals", packing.GlobalsSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		d.release()
		return nil, err
	}

	logger.Info("webgpu device ready")
	return d, nil
}

func (d *Device) createPipeline() error {
	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Path Tracer Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderSource},
	})
	if err != nil {
		return fmt.Errorf("webgpu: compile shader: %w", err)
	}
	defer module.Release()

	entries := make([]wgpu.BindGroupLayoutEntry, bindingCount)
	for i := range entries {
		bufferType := wgpu.BufferBindingTypeReadOnlyStorage
		switch i {
		case bindingCamera, bindingGlobals:
			bufferType = wgpu.BufferBindingTypeUniform
		case bindingAccum:
			bufferType = wgpu.BufferBindingTypeStorage
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     wgpu.BufferBindingLayout{Type: bufferType},
		}
	}

	d.layout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Path Tracer Bind Group Layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create bind group layout: %w", err)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Path Tracer Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.layout},
	})
	if err != nil {
		return fmt.Errorf("webgpu: create pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	d.pipeline, err = d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "Path Tracer Compute Pipeline",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("webgpu: create compute pipeline: %w", err)
	}
	return nil
}

func (d *Device) createBuffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create %s buffer: %w", label, err)
	}
	return buf, nil
}

// rebindLocked recreates the bind group once both the scene and target exist
func (d *Device) rebindLocked() error {
	if d.bindGroup != nil {
		d.bindGroup.Release()
		d.bindGroup = nil
	}
	if d.accum == nil || d.scene[bindingNodes] == nil {
		return nil
	}

	buffers := [bindingCount]*wgpu.Buffer{}
	copy(buffers[:], d.scene[:])
	buffers[bindingCamera] = d.camera
	buffers[bindingGlobals] = d.globals
	buffers[bindingAccum] = d.accum

	entries := make([]wgpu.BindGroupEntry, bindingCount)
	for i, buf := range buffers {
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Path Tracer Bind Group",
		Layout:  d.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create bind group: %w", err)
	}
	d.bindGroup = bg
	return nil
}

// UploadScene replaces every scene storage buffer
func (d *Device) UploadScene(data packing.SceneData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrDeviceLost
	}

	contents := [bindingCamera][]byte{data.Nodes, data.Spheres, data.Lights, data.Lambertians, data.Metals, data.Glass}
	labels := [bindingCamera]string{"Nodes", "Spheres", "Lights", "Lambertians", "Metals", "Glass"}

	var fresh [bindingCamera]*wgpu.Buffer
	for i, c := range contents {
		if len(c) == 0 {
			releaseAll(fresh[:])
			return fmt.Errorf("webgpu: empty %s buffer", labels[i])
		}
		buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    labels[i],
			Contents: c,
			Usage:    wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			releaseAll(fresh[:])
			return fmt.Errorf("webgpu: upload %s: %w", labels[i], err)
		}
		fresh[i] = buf
	}

	releaseAll(d.scene[:])
	d.scene = fresh
	logger.Debugf("uploaded %d bytes of scene data", data.Size())
	return d.rebindLocked()
}

// Resize reallocates the accumulation buffer with padded rows
func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("webgpu: invalid target size %dx%d", width, height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrDeviceLost
	}

	layout := device.NewReadbackLayout(width, height)
	buf, err := d.createBuffer("Accumulation", layout.Size(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	if d.accum != nil {
		d.accum.Release()
	}
	d.accum = buf
	d.targetLayout = layout
	return d.rebindLocked()
}

// submit records one command buffer with fn and submits it
func (d *Device) submit(label string, fn func(encoder *wgpu.CommandEncoder) error) error {
	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", device.ErrDeviceLost, label, err)
	}
	defer encoder.Release()

	if err := fn(encoder); err != nil {
		return fmt.Errorf("%w: %s: %v", device.ErrDeviceLost, label, err)
	}

	commands, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", device.ErrDeviceLost, label, err)
	}
	defer commands.Release()

	d.queue.Submit(commands)
	return nil
}

// ClearTarget zeroes the accumulation buffer
func (d *Device) ClearTarget() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrDeviceLost
	}
	if d.accum == nil {
		return device.ErrTargetNotAllocated
	}

	return d.submit("Clear", func(encoder *wgpu.CommandEncoder) error {
		return encoder.ClearBuffer(d.accum, 0, d.targetLayout.Size())
	})
}

// Dispatch writes the uniforms and runs one compute pass over the target
func (d *Device) Dispatch(camera packing.Camera, globals packing.Globals) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrDeviceLost
	}
	if d.accum == nil {
		return device.ErrTargetNotAllocated
	}
	if d.bindGroup == nil {
		return device.ErrNoScene
	}

	if err := d.queue.WriteBuffer(d.camera, 0, camera.Bytes()); err != nil {
		return fmt.Errorf("%w: write camera: %v", device.ErrDeviceLost, err)
	}
	if err := d.queue.WriteBuffer(d.globals, 0, globals.Bytes()); err != nil {
		return fmt.Errorf("%w: write globals: %v", device.ErrDeviceLost, err)
	}

	return d.submit("Dispatch", func(encoder *wgpu.CommandEncoder) error {
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(d.pipeline)
		pass.SetBindGroup(0, d.bindGroup, nil)
		pass.DispatchWorkgroups(device.WorkgroupCount(d.targetLayout.Width), device.WorkgroupCount(d.targetLayout.Height), 1)
		return pass.End()
	})
}

// CopyTarget copies the accumulation buffer into a new mappable buffer
func (d *Device) CopyTarget() (device.Readback, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrDeviceLost
	}
	if d.accum == nil {
		return nil, device.ErrTargetNotAllocated
	}

	layout := d.targetLayout
	staging, err := d.createBuffer("Readback", layout.Size(), wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	if err := d.submit("Copy", func(encoder *wgpu.CommandEncoder) error {
		return encoder.CopyBufferToBuffer(d.accum, 0, staging, 0, layout.Size())
	}); err != nil {
		staging.Release()
		return nil, err
	}

	return &readback{owner: d, buffer: staging, layout: layout}, nil
}

// Close releases every GPU resource
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.release()
	return nil
}

func (d *Device) release() {
	if d.bindGroup != nil {
		d.bindGroup.Release()
	}
	releaseAll(d.scene[:])
	releaseAll([]*wgpu.Buffer{d.camera, d.globals, d.accum})
	if d.pipeline != nil {
		d.pipeline.Release()
	}
	if d.layout != nil {
		d.layout.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

func releaseAll(buffers []*wgpu.Buffer) {
	for _, b := range buffers {
		if b != nil {
			b.Release()
		}
	}
}

// readback maps its staging buffer once and releases it afterwards
type readback struct {
	owner  *Device
	buffer *wgpu.Buffer
	layout device.ReadbackLayout

	once sync.Once
	data []byte
	err  error
}

func (r *readback) Layout() device.ReadbackLayout { return r.layout }

// Map blocks on the device until the copy has completed and the buffer is mapped
func (r *readback) Map() ([]byte, error) {
	r.once.Do(func() {
		r.data, r.err = r.mapBuffer()
		r.buffer.Release()
	})
	return r.data, r.err
}

func (r *readback) mapBuffer() ([]byte, error) {
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	if r.owner.closed {
		return nil, device.ErrDeviceLost
	}

	size := r.layout.Size()
	var (
		status wgpu.BufferMapAsyncStatus
		called bool
	)
	err := r.buffer.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status, called = s, true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrMappingFailed, err)
	}
	r.owner.device.Poll(true, nil)

	if err := mapStatusError(called, status); err != nil {
		return nil, err
	}

	mapped := r.buffer.GetMappedRange(0, uint(size))
	data := make([]byte, len(mapped))
	copy(data, mapped)
	r.buffer.Unmap()

	if len(data) == 0 {
		return nil, errors.Join(device.ErrMappingFailed, errors.New("empty mapped range"))
	}
	return data, nil
}

// mapStatusError converts the outcome of a MapAsync callback into a device error
func mapStatusError(called bool, status wgpu.BufferMapAsyncStatus) error {
	switch {
	case !called:
		return fmt.Errorf("%w: map callback never ran", device.ErrMappingFailed)
	case status == wgpu.BufferMapAsyncStatusSuccess:
		return nil
	case status == wgpu.BufferMapAsyncStatusDeviceLost:
		return fmt.Errorf("%w: while mapping readback", device.ErrDeviceLost)
	default:
		return fmt.Errorf("%w: status %v", device.ErrMappingFailed, status)
	}
}
