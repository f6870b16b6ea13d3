//go:build js && wasm

package webhost

import (
	"sync/atomic"
	"syscall/js"
	"time"

	"github.com/snappy-loop/bulletin/internal/player"
)

// FrameScheduler delivers requestAnimationFrame callbacks onto a dispatcher.
type FrameScheduler struct {
	dispatch player.Dispatcher
}

// NewFrameScheduler creates a scheduler posting through dispatch.
func NewFrameScheduler(dispatch player.Dispatcher) *FrameScheduler {
	return &FrameScheduler{dispatch: dispatch}
}

// Now implements player.FrameScheduler.
func (s *FrameScheduler) Now() time.Time { return time.Now() }

// RequestFrame implements player.FrameScheduler. Cancel runs on the
// dispatcher's goroutine, so a frame already posted is dropped there.
func (s *FrameScheduler) RequestFrame(fn func(now time.Time)) (cancel func()) {
	cancelled := false
	var fired atomic.Bool
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		fired.Store(true)
		cb.Release()
		now := time.Now()
		s.dispatch.Post(func() {
			if !cancelled {
				fn(now)
			}
		})
		return nil
	})
	id := global.Call("requestAnimationFrame", cb)
	return func() {
		if cancelled {
			return
		}
		cancelled = true
		if !fired.Load() {
			global.Call("cancelAnimationFrame", id)
			cb.Release()
		}
	}
}
