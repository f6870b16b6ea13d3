package headless

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/snappy-loop/bulletin/internal/player"
)

// Default canvas dimensions of a bulletin.
const (
	CanvasWidth  = player.CanvasWidth
	CanvasHeight = player.CanvasHeight
)

// Surface is an RGBA canvas. Snapshot and EncodePNG may be called from any
// goroutine; Clear and Draw come from the player.
type Surface struct {
	mu    sync.Mutex
	img   *image.RGBA
	draws int
}

// NewSurface creates a transparent w×h surface.
func NewSurface(w, h int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Size implements player.Surface.
func (s *Surface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Clear implements player.Surface.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
}

// Draw implements player.Surface. Frames not produced by this package's
// Decoder are ignored.
func (s *Surface) Draw(f player.Frame, r player.Rect) {
	src, ok := f.(*Image)
	if !ok || r.Empty() {
		return
	}
	w := int(math.Round(r.W))
	h := int(math.Round(r.H))
	if w <= 0 || h <= 0 {
		return
	}
	scaled := imaging.Resize(src.Image, w, h, imaging.Lanczos)
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))

	s.mu.Lock()
	defer s.mu.Unlock()
	draw.Draw(s.img, image.Rect(x, y, x+w, y+h), scaled, image.Point{}, draw.Over)
	s.draws++
}

// Draws returns how many frames have been painted.
func (s *Surface) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}

// EncodePNG writes the current pixels as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Snapshot())
}
