package renderer

import (
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"

	"github.com/df07/go-wgpu-pathtracer/pkg/device"
	"github.com/df07/go-wgpu-pathtracer/pkg/imageio"
)

const gamma = 2.2

// SaveHandle is an in-flight copy of the accumulation target
type SaveHandle struct {
	readback           device.Readback
	layout             device.ReadbackLayout
	frames             int32
	samplesPerDispatch int32
}

// TotalSamples is the per-pixel sample count the copy was taken at
func (h *SaveHandle) TotalSamples() int64 {
	return int64(h.frames) * int64(h.samplesPerDispatch)
}

// Layout returns the row layout of the copied target
func (h *SaveHandle) Layout() device.ReadbackLayout {
	return h.layout
}

// Image waits for the copy and returns the tone-mapped image
func (h *SaveHandle) Image(totalSamples int64) (*image.RGBA, error) {
	if totalSamples <= 0 {
		return nil, ErrNoSamples
	}
	data, err := h.readback.Map()
	if err != nil {
		return nil, fmt.Errorf("renderer: map readback: %w", err)
	}
	pixels := h.layout.Strip(data)
	return ToneMap(pixels, int(h.layout.Width), int(h.layout.Height), totalSamples), nil
}

// Finish waits for the copy and writes the tone-mapped image to path
func (h *SaveHandle) Finish(totalSamples int64, path string) error {
	img, err := h.Image(totalSamples)
	if err != nil {
		return err
	}
	if err := imageio.Save(path, img); err != nil {
		return err
	}
	logger.Noticef("Saved %s (%dx%d, %d samples)", path, h.layout.Width, h.layout.Height, totalSamples)
	return nil
}

// ToneMap averages accumulated RGBA texels over totalSamples, gamma corrects
// them and quantises to 8 bits. Alpha is always opaque.
func ToneMap(pixels []float32, width, height int, totalSamples int64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scale := 1 / float32(totalSamples)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(pixels[i] * scale),
				G: toByte(pixels[i+1] * scale),
				B: toByte(pixels[i+2] * scale),
				A: 255,
			})
		}
	}
	return img
}

func toByte(v float32) uint8 {
	if math32.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math32.Round(math32.Pow(v, 1/gamma) * 255))
}
