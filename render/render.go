// Package render draws constellation diagrams. Symbols are drawn on a data
// surface which is redrawn for every batch. Decision boundaries are drawn
// on a separate overlay surface which is redrawn only when the modulation
// order or the size changes. The picture is the overlay composited over
// the data.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
)

// Defaults of the renderer.
const (
	DefaultScale  = 0.8
	DefaultRadius = 1.0
	DefaultMode   = 2
)

// Default colors.
var (
	Background        color.Color = color.Black
	Dot               color.Color = color.White
	Line              color.Color = color.Gray{Y: 127}
	OverlayBackground color.Color = color.Transparent
)

// Labels of modulation orders drawn on the overlay.
var labels = map[int]string{
	2: "BPSK",
	4: "QPSK",
	8: "8PSK",
}

// Option configures renderer.
type Option func(*Renderer)

// WithScale sets fraction of half-size that unit amplitude spans.
func WithScale(x, y float64) Option {
	return func(r *Renderer) {
		r.scaleX, r.scaleY = x, y
	}
}

// WithMode sets initial modulation order.
func WithMode(n int) Option {
	return func(r *Renderer) {
		if validMode(n) {
			r.mode = n
		}
	}
}

// WithDotRadius sets radius of symbol dots in pixels.
func WithDotRadius(radius float64) Option {
	return func(r *Renderer) {
		r.radius = radius
	}
}

// WithColors replaces background, dot and overlay line colors.
func WithColors(background, dot, line color.Color) Option {
	return func(r *Renderer) {
		r.background, r.dot, r.line = background, dot, line
	}
}

// WithLabel draws modulation name in the corner of the overlay.
func WithLabel() Option {
	return func(r *Renderer) {
		r.label = true
	}
}

// Renderer draws constellation. It's safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	backend Backend
	w, h    int
	data    Surface
	overlay Surface
	symbols []complex64
	mode    int
	label   bool

	scaleX, scaleY float64
	radius         float64
	background     color.Color
	dot            color.Color
	line           color.Color
}

// New returns renderer without surfaces. Nothing is drawn until the
// first Resize.
func New(backend Backend, options ...Option) *Renderer {
	r := &Renderer{
		backend:    backend,
		mode:       DefaultMode,
		scaleX:     DefaultScale,
		scaleY:     DefaultScale,
		radius:     DefaultRadius,
		background: Background,
		dot:        Dot,
		line:       Line,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Map returns surface coordinates of the symbol.
func (r *Renderer) Map(s complex64) (x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.project(s)
}

func (r *Renderer) project(s complex64) (x, y float64) {
	halfW, halfH := float64(r.w)/2, float64(r.h)/2
	return float64(real(s))*r.scaleX*halfW + halfW, float64(imag(s))*r.scaleY*halfH + halfH
}

// SetSymbols replaces the data surface with the symbols. Symbols at the
// origin carry no signal and are skipped.
func (r *Renderer) SetSymbols(symbols []complex64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols = append(r.symbols[:0], symbols...)
	r.drawData()
}

// SetMode sets modulation order and redraws the overlay. Orders other than
// 2, 4 and 8 are ignored, as well as the current one.
func (r *Renderer) SetMode(n int) {
	if !validMode(n) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n == r.mode {
		return
	}
	r.mode = n
	r.drawOverlay()
}

// Mode returns modulation order.
func (r *Renderer) Mode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetScale changes scale and redraws the data. Non-positive values are
// ignored.
func (r *Renderer) SetScale(x, y float64) {
	if x <= 0 || y <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scaleX, r.scaleY = x, y
	r.drawData()
}

// Resize reallocates both surfaces for a new size and redraws them.
// Degenerate sizes are ignored. Same size only redraws the data.
func (r *Renderer) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w == r.w && h == r.h {
		r.drawData()
		return
	}
	r.w, r.h = w, h
	r.data = r.backend.Allocate(w, h)
	r.overlay = r.backend.Allocate(w, h)
	r.drawOverlay()
	r.drawData()
}

// Size returns current size.
func (r *Renderer) Size() (w, h int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w, r.h
}

// Paint composites the overlay over the data. Empty image is returned
// before the first Resize.
func (r *Renderer) Paint() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		return image.NewRGBA(image.Rectangle{})
	}
	return r.backend.Composite(r.data, r.overlay)
}

// WritePNG paints and encodes the picture as PNG.
func (r *Renderer) WritePNG(w io.Writer) error {
	return png.Encode(w, r.Paint())
}

func (r *Renderer) drawData() {
	if r.data == nil {
		return
	}
	r.data.Fill(r.background)
	for _, s := range r.symbols {
		if s == 0 {
			continue
		}
		x, y := r.project(s)
		r.data.DrawPoint(x, y, r.radius, r.dot)
	}
}

// drawOverlay draws decision boundaries: the vertical axis for BPSK, both
// axes for QPSK and axes with diagonals for 8PSK.
func (r *Renderer) drawOverlay() {
	if r.overlay == nil {
		return
	}
	w, h := float64(r.w), float64(r.h)
	r.overlay.Fill(OverlayBackground)
	r.overlay.DrawLine(w/2, 0, w/2, h, r.line)
	if r.mode > 2 {
		r.overlay.DrawLine(0, h/2, w, h/2, r.line)
	}
	if r.mode > 4 {
		r.overlay.DrawLine(0, 0, w, h, r.line)
		r.overlay.DrawLine(0, h, w, 0, r.line)
	}
	if r.label {
		r.overlay.DrawText(4, 16, labels[r.mode], r.line)
	}
}

func validMode(n int) bool {
	return n == 2 || n == 4 || n == 8
}
