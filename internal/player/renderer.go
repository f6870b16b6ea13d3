package player

// Canvas dimensions of a bulletin.
const (
	CanvasWidth  = 800
	CanvasHeight = 450
)

// Rect is a draw rectangle in surface pixels.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether r covers no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Letterbox fits an imgW×imgH image inside a surfW×surfH surface without
// cropping or distortion. Wider images span the full width and are centered
// vertically; the rest span the full height and are centered horizontally.
func Letterbox(imgW, imgH, surfW, surfH int) Rect {
	if imgW <= 0 || imgH <= 0 || surfW <= 0 || surfH <= 0 {
		return Rect{}
	}
	imgAspect := float64(imgW) / float64(imgH)
	surfAspect := float64(surfW) / float64(surfH)
	w, h := float64(surfW), float64(surfH)

	if imgAspect > surfAspect {
		dh := w / imgAspect
		return Rect{X: 0, Y: (h - dh) / 2, W: w, H: dh}
	}
	dw := h * imgAspect
	return Rect{X: (w - dw) / 2, Y: 0, W: dw, H: h}
}

// Renderer paints one frame at a time onto its surface.
type Renderer struct {
	surface Surface
}

// NewRenderer creates a renderer for surface.
func NewRenderer(surface Surface) *Renderer {
	return &Renderer{surface: surface}
}

// Render clears the surface and draws f letterboxed. A nil frame is a no-op.
func (r *Renderer) Render(f Frame) {
	if r == nil || r.surface == nil || f == nil {
		return
	}
	iw, ih := f.Size()
	sw, sh := r.surface.Size()
	rect := Letterbox(iw, ih, sw, sh)
	r.surface.Clear()
	if rect.Empty() {
		return
	}
	r.surface.Draw(f, rect)
}
