//go:build js && wasm

package webhost

import (
	"syscall/js"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/player"
)

// Surface paints on a <canvas> 2D context.
type Surface struct {
	canvas js.Value
	ctx    js.Value
}

// NewSurface binds the canvas element.
func NewSurface(canvas js.Value) *Surface {
	return &Surface{canvas: canvas, ctx: canvas.Call("getContext", "2d")}
}

// Canvas returns the bound element.
func (s *Surface) Canvas() js.Value { return s.canvas }

// Size implements player.Surface.
func (s *Surface) Size() (int, int) {
	return s.canvas.Get("width").Int(), s.canvas.Get("height").Int()
}

// Clear implements player.Surface. Margins are painted black so recordings
// do not inherit page styling.
func (s *Surface) Clear() {
	w, h := s.Size()
	s.ctx.Call("clearRect", 0, 0, w, h)
	s.ctx.Set("fillStyle", "#000")
	s.ctx.Call("fillRect", 0, 0, w, h)
}

// Draw implements player.Surface.
func (s *Surface) Draw(f player.Frame, r player.Rect) {
	img, ok := f.(*Image)
	if !ok {
		log.Warn().Msgf("webhost: cannot draw frame of type %T", f)
		return
	}
	s.ctx.Call("drawImage", img.el, r.X, r.Y, r.W, r.H)
}
