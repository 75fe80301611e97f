// Package raster provides the owned RGBA pixel buffer that the slicing
// pipeline reads from, and loading of sheet images from disk.
package raster

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"sprite-slicer/pkg/geometry"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Raster is a non-premultiplied RGBA buffer, 4 bytes per pixel, row-major.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a fully transparent raster.
func New(width, height int) *Raster {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
}

// FromImage copies any image into a new raster. The source origin is
// moved to (0, 0).
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	r := New(b.Dx(), b.Dy())
	for y := 0; y < r.Height; y++ {
		copy(r.Pix[y*r.Width*4:(y+1)*r.Width*4], dst.Pix[y*dst.Stride:y*dst.Stride+r.Width*4])
	}
	return r
}

// Load decodes the image at path into a raster.
func Load(path string) (*Raster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sheet %q", path)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding sheet %q", path)
	}
	return FromImage(img), nil
}

// Bounds returns the full raster rectangle.
func (r *Raster) Bounds() geometry.RectInt {
	return geometry.NewRectInt(0, 0, r.Width, r.Height)
}

// In reports whether (x, y) is inside the raster.
func (r *Raster) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.Width && y < r.Height
}

func (r *Raster) offset(x, y int) int {
	return (y*r.Width + x) * 4
}

// Alpha returns the alpha at (x, y), or 0 outside the raster.
func (r *Raster) Alpha(x, y int) uint8 {
	if !r.In(x, y) {
		return 0
	}
	return r.Pix[r.offset(x, y)+3]
}

// RGB returns the color channels at (x, y), or zeros outside the raster.
func (r *Raster) RGB(x, y int) (red, green, blue uint8) {
	if !r.In(x, y) {
		return 0, 0, 0
	}
	o := r.offset(x, y)
	return r.Pix[o], r.Pix[o+1], r.Pix[o+2]
}

// NRGBAAt returns the pixel at (x, y), or transparent outside the raster.
func (r *Raster) NRGBAAt(x, y int) color.NRGBA {
	if !r.In(x, y) {
		return color.NRGBA{}
	}
	o := r.offset(x, y)
	return color.NRGBA{R: r.Pix[o], G: r.Pix[o+1], B: r.Pix[o+2], A: r.Pix[o+3]}
}

// Set writes a pixel. Writes outside the raster are ignored.
func (r *Raster) Set(x, y int, c color.NRGBA) {
	if !r.In(x, y) {
		return
	}
	o := r.offset(x, y)
	r.Pix[o] = c.R
	r.Pix[o+1] = c.G
	r.Pix[o+2] = c.B
	r.Pix[o+3] = c.A
}

// Fill paints a rectangle, clipped to the raster.
func (r *Raster) Fill(rect geometry.RectInt, c color.NRGBA) {
	rect = rect.Intersect(r.Bounds())
	for y := rect.Y; y < rect.Bottom(); y++ {
		for x := rect.X; x < rect.Right(); x++ {
			r.Set(x, y, c)
		}
	}
}

// Crop copies rect (clipped to the raster) into a new image whose origin
// is (0, 0). When keep is non-nil, pixels for which it returns false are
// left transparent.
func (r *Raster) Crop(rect geometry.RectInt, keep func(x, y int) bool) *image.NRGBA {
	rect = rect.Intersect(r.Bounds())
	out := image.NewNRGBA(image.Rect(0, 0, rect.Width, rect.Height))
	for y := rect.Y; y < rect.Bottom(); y++ {
		for x := rect.X; x < rect.Right(); x++ {
			if keep != nil && !keep(x, y) {
				continue
			}
			src := r.offset(x, y)
			dst := out.PixOffset(x-rect.X, y-rect.Y)
			copy(out.Pix[dst:dst+4], r.Pix[src:src+4])
		}
	}
	return out
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".png", ".gif", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
