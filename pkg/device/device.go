// Package device abstracts the GPU that owns the accumulation target and runs
// the path tracing kernel.
package device

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/df07/go-wgpu-pathtracer/pkg/packing"
)

var (
	// ErrDeviceLost is returned once the device can no longer accept work.
	ErrDeviceLost = errors.New("device: device lost")
	// ErrMappingFailed is returned when a readback buffer cannot be mapped.
	ErrMappingFailed = errors.New("device: buffer mapping failed")
	// ErrTargetNotAllocated is returned for target operations before Resize.
	ErrTargetNotAllocated = errors.New("device: accumulation target not allocated")
	// ErrNoScene is returned when dispatching before any scene was uploaded.
	ErrNoScene = errors.New("device: no scene uploaded")
)

const (
	// WorkgroupSize is the edge length of the square compute workgroup.
	WorkgroupSize = 16
	// RowAlignment is the required alignment of a copied row, in bytes.
	RowAlignment = 256
	// BytesPerPixel is one rgba32float accumulation texel.
	BytesPerPixel = 16
)

// Device submits work to the GPU queue. Submissions are asynchronous and
// executed strictly in order; only Readback.Map blocks.
type Device interface {
	// UploadScene replaces every scene storage buffer.
	UploadScene(data packing.SceneData) error
	// Resize reallocates the accumulation target. Its contents are undefined
	// until the next ClearTarget.
	Resize(width, height uint32) error
	// ClearTarget zeroes the accumulation target.
	ClearTarget() error
	// Dispatch adds globals.Samples samples per pixel to the target.
	Dispatch(camera packing.Camera, globals packing.Globals) error
	// CopyTarget queues a copy of the target into a host-readable buffer.
	CopyTarget() (Readback, error)
	// Close releases the device. Outstanding work is finished first.
	Close() error
}

// Readback is a host-readable copy of the accumulation target.
type Readback interface {
	// Map blocks until the copy completes and returns the padded bytes.
	Map() ([]byte, error)
	Layout() ReadbackLayout
}

// ReadbackLayout describes the row padding of a copied target.
type ReadbackLayout struct {
	Width               uint32
	Height              uint32
	UnpaddedBytesPerRow uint32
	PaddedBytesPerRow   uint32
}

// NewReadbackLayout computes the layout of a width x height rgba32float target
func NewReadbackLayout(width, height uint32) ReadbackLayout {
	unpadded := width * BytesPerPixel
	padding := (RowAlignment - unpadded%RowAlignment) % RowAlignment
	return ReadbackLayout{
		Width:               width,
		Height:              height,
		UnpaddedBytesPerRow: unpadded,
		PaddedBytesPerRow:   unpadded + padding,
	}
}

// RowTexels is the padded row length in pixels
func (l ReadbackLayout) RowTexels() uint32 {
	return l.PaddedBytesPerRow / BytesPerPixel
}

// Size is the total number of bytes of the padded buffer
func (l ReadbackLayout) Size() uint64 {
	return uint64(l.PaddedBytesPerRow) * uint64(l.Height)
}

// Strip removes row padding and decodes the rgba float32 values, row-major
func (l ReadbackLayout) Strip(padded []byte) []float32 {
	out := make([]float32, 0, int(l.Width)*int(l.Height)*4)
	for y := uint32(0); y < l.Height; y++ {
		row := padded[uint64(y)*uint64(l.PaddedBytesPerRow):]
		for off := uint32(0); off < l.UnpaddedBytesPerRow; off += 4 {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(row[off:])))
		}
	}
	return out
}

// WorkgroupCount returns the number of workgroups covering n pixels
func WorkgroupCount(n uint32) uint32 {
	return (n + WorkgroupSize - 1) / WorkgroupSize
}

// encodeTarget serialises float32 texels as little-endian bytes
func encodeTarget(target []float32) []byte {
	out := make([]byte, len(target)*4)
	for i, v := range target {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
