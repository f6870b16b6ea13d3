//go:build js && wasm

package webhost

import (
	"context"
	"syscall/js"
	"time"
)

// playTimeout bounds the wait for HTMLMediaElement.play().
const playTimeout = 10 * time.Second

// Track drives an <audio> element.
type Track struct {
	el js.Value
}

// NewTrack binds the audio element.
func NewTrack(el js.Value) *Track {
	return &Track{el: el}
}

// Element returns the bound element.
func (t *Track) Element() js.Value { return t.el }

// SetSource replaces the track's media and rewinds it.
func (t *Track) SetSource(url string) {
	t.el.Call("pause")
	t.el.Set("src", url)
	t.el.Call("load")
}

// Play implements player.AudioTrack. It waits for the play() promise so that
// autoplay rejections surface as errors.
func (t *Track) Play() error {
	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()
	var p js.Value
	if err := try(func() { p = t.el.Call("play") }); err != nil {
		return err
	}
	if p.IsUndefined() {
		return nil
	}
	_, err := Await(ctx, p)
	return err
}

// Pause implements player.AudioTrack.
func (t *Track) Pause() { t.el.Call("pause") }

// Rewind implements player.AudioTrack.
func (t *Track) Rewind() { t.el.Set("currentTime", 0) }

// Paused implements player.AudioTrack.
func (t *Track) Paused() bool { return t.el.Get("paused").Bool() }

// Ended implements player.AudioTrack.
func (t *Track) Ended() bool { return t.el.Get("ended").Bool() }

// OnEnded registers fn for the element's ended event.
func (t *Track) OnEnded(fn func()) (release func()) {
	return Listen(t.el, "ended", func(js.Value) { fn() })
}
