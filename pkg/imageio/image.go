package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrUnknownFormat is returned for file extensions with no codec.
var ErrUnknownFormat = errors.New("imageio: unknown image format")

type codec struct {
	encode func(io.Writer, image.Image) error
	decode func(io.Reader) (image.Image, error)
}

var codecs = map[string]codec{
	".png": {encode: png.Encode, decode: png.Decode},
	".webp": {
		encode: func(w io.Writer, m image.Image) error { return nativewebp.Encode(w, m, nil) },
		decode: webp.Decode,
	},
	".tga": {encode: tga.Encode, decode: tga.Decode},
	".bmp": {encode: bmp.Encode, decode: bmp.Decode},
	".tif": {
		encode: func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) },
		decode: tiff.Decode,
	},
	".jpg": {
		encode: func(w io.Writer, m image.Image) error { return jpeg.Encode(w, m, &jpeg.Options{Quality: 95}) },
		decode: jpeg.Decode,
	},
}

func init() {
	codecs[".tiff"] = codecs[".tif"]
	codecs[".jpeg"] = codecs[".jpg"]
}

func lookup(path string) (codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	c, ok := codecs[ext]
	if !ok {
		return codec{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	return c, nil
}

// Supported reports whether path has an extension Save can write
func Supported(path string) bool {
	_, err := lookup(path)
	return err == nil
}

// Save encodes img by the extension of path, creating parent directories
func Save(path string, img image.Image) error {
	c, err := lookup(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("imageio: create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imageio: create %s: %w", path, err)
	}
	if err := c.encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("imageio: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("imageio: close %s: %w", path, err)
	}
	return nil
}

// Encode writes img to w in the format named by ext (".png", ".webp", ...)
func Encode(w io.Writer, ext string, img image.Image) error {
	c, err := lookup("image" + ext)
	if err != nil {
		return err
	}
	return c.encode(w, img)
}

// Load decodes an image file by its extension
func Load(path string) (image.Image, error) {
	c, err := lookup(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: open %s: %w", path, err)
	}
	defer f.Close()

	img, err := c.decode(f)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return img, nil
}

// Scale resizes img to fit within maxWidth, keeping the aspect ratio.
// Images already narrower than maxWidth are returned unchanged.
func Scale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}

	height := b.Dy() * maxWidth / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
