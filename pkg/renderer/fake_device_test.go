package renderer

import (
	"encoding/binary"
	"math"

	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
)

// recordingDevice is a device.Device that records every call instead of rendering
type recordingDevice struct {
	calls    []string
	uploads  []packing.SceneData
	cameras  []packing.Camera
	globals  []packing.Globals
	resizes  [][2]uint32
	width    uint32
	height   uint32
	target   []byte // returned by the next readback
	readback *fakeReadback

	clearErr    error
	dispatchErr error
	copyErr     error
	mapErr      error
}

func (d *recordingDevice) UploadScene(data packing.SceneData) error {
	d.calls = append(d.calls, "upload")
	d.uploads = append(d.uploads, data)
	return nil
}

func (d *recordingDevice) Resize(width, height uint32) error {
	d.calls = append(d.calls, "resize")
	d.resizes = append(d.resizes, [2]uint32{width, height})
	d.width, d.height = width, height
	return nil
}

func (d *recordingDevice) ClearTarget() error {
	d.calls = append(d.calls, "clear")
	return d.clearErr
}

func (d *recordingDevice) Dispatch(camera packing.Camera, globals packing.Globals) error {
	d.calls = append(d.calls, "dispatch")
	if d.dispatchErr != nil {
		return d.dispatchErr
	}
	d.cameras = append(d.cameras, camera)
	d.globals = append(d.globals, globals)
	return nil
}

func (d *recordingDevice) CopyTarget() (device.Readback, error) {
	d.calls = append(d.calls, "copy")
	if d.copyErr != nil {
		return nil, d.copyErr
	}
	layout := device.NewReadbackLayout(d.width, d.height)
	data := d.target
	if data == nil {
		data = make([]byte, layout.Size())
	}
	d.readback = &fakeReadback{data: data, layout: layout, err: d.mapErr}
	return d.readback, nil
}

func (d *recordingDevice) Close() error {
	d.calls = append(d.calls, "close")
	return nil
}

// count returns how many times a call was recorded
func (d *recordingDevice) count(call string) int {
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeReadback struct {
	data   []byte
	layout device.ReadbackLayout
	err    error
	mapped int
}

func (r *fakeReadback) Map() ([]byte, error) {
	r.mapped++
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

func (r *fakeReadback) Layout() device.ReadbackLayout { return r.layout }

// paddedTarget encodes per-pixel rgba values into a row-padded buffer
func paddedTarget(layout device.ReadbackLayout, pixel func(x, y uint32) [4]float32) []byte {
	data := make([]byte, layout.Size())
	for y := uint32(0); y < layout.Height; y++ {
		for x := uint32(0); x < layout.Width; x++ {
			rgba := pixel(x, y)
			off := y*layout.PaddedBytesPerRow + x*device.BytesPerPixel
			for c := 0; c < 4; c++ {
				binary.LittleEndian.PutUint32(data[off+uint32(c)*4:], math.Float32bits(rgba[c]))
			}
		}
	}
	return data
}

// sequenceSeeds hands out 1, 2, 3, ...
type sequenceSeeds struct{ next uint32 }

func (s *sequenceSeeds) Uint32() uint32 {
	s.next++
	return s.next
}
