package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Backend allocates surfaces and composites them into a picture.
type Backend interface {
	Allocate(w, h int) Surface
	// Composite stacks layers in order, the first one at the bottom.
	Composite(layers ...Surface) image.Image
}

// Surface is a pixel surface of a backend.
type Surface interface {
	Fill(c color.Color)
	DrawPoint(x, y, radius float64, c color.Color)
	DrawLine(x0, y0, x1, y1 float64, c color.Color)
	DrawText(x, y float64, text string, c color.Color)
}

// kappa places cubic control points to approximate a quarter circle.
const kappa = 0.5522847498

// ImageBackend renders into RGBA images with anti-aliased vector shapes.
type ImageBackend struct{}

// NewImageBackend returns image backend.
func NewImageBackend() *ImageBackend {
	return &ImageBackend{}
}

// Allocate returns transparent RGBA surface.
func (*ImageBackend) Allocate(w, h int) Surface {
	return &ImageSurface{
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
		z:   vector.NewRasterizer(w, h),
	}
}

// Composite draws layers over each other. Surfaces of other backends are
// skipped.
func (*ImageBackend) Composite(layers ...Surface) image.Image {
	var bounds image.Rectangle
	for _, l := range layers {
		if s, ok := l.(*ImageSurface); ok {
			bounds = bounds.Union(s.img.Bounds())
		}
	}
	out := image.NewRGBA(bounds)
	for _, l := range layers {
		if s, ok := l.(*ImageSurface); ok {
			draw.Draw(out, s.img.Bounds(), s.img, s.img.Bounds().Min, draw.Over)
		}
	}
	return out
}

// ImageSurface is a surface of ImageBackend.
type ImageSurface struct {
	img *image.RGBA
	z   *vector.Rasterizer
}

// Image returns underlying image.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

// Fill replaces every pixel with the color.
func (s *ImageSurface) Fill(c color.Color) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawPoint draws a filled circle.
func (s *ImageSurface) DrawPoint(x, y, radius float64, c color.Color) {
	s.reset()
	cx, cy, r := float32(x), float32(y), float32(radius)
	k := float32(kappa) * r
	s.z.MoveTo(cx+r, cy)
	s.z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	s.z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	s.z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	s.z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	s.z.ClosePath()
	s.paint(c)
}

// DrawLine draws a line one pixel wide.
func (s *ImageSurface) DrawLine(x0, y0, x1, y1 float64, c color.Color) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// half width offset, perpendicular to the line.
	nx, ny := float32(-dy/length/2), float32(dx/length/2)
	s.reset()
	s.z.MoveTo(float32(x0)+nx, float32(y0)+ny)
	s.z.LineTo(float32(x1)+nx, float32(y1)+ny)
	s.z.LineTo(float32(x1)-nx, float32(y1)-ny)
	s.z.LineTo(float32(x0)-nx, float32(y0)-ny)
	s.z.ClosePath()
	s.paint(c)
}

// DrawText draws text with its baseline starting at the point.
func (s *ImageSurface) DrawText(x, y float64, text string, c color.Color) {
	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(text)
}

func (s *ImageSurface) reset() {
	b := s.img.Bounds()
	s.z.Reset(b.Dx(), b.Dy())
	s.z.DrawOp = draw.Over
}

func (s *ImageSurface) paint(c color.Color) {
	s.z.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{})
}
