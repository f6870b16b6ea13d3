// Package player implements the audio-synchronized slideshow compositor:
// image loading, letterboxed frame rendering, the playback clock and the
// capture session that records the composited output.
//
// Every component is owned by a single goroutine (see Loop). Host
// implementations deliver their callbacks through a Dispatcher so that all
// state transitions happen in order on that goroutine; no component takes
// locks except the Loader, whose decodes run in parallel.
package player

import (
	"context"
	"time"
)

// Frame is a decoded, ready-to-draw image.
type Frame interface {
	Size() (width, height int)
}

// Decoder resolves one image locator (data URL or remote URL) into a Frame.
// Decode may be called from several goroutines at once.
type Decoder interface {
	Decode(ctx context.Context, locator string) (Frame, error)
}

// Surface is the fixed-size drawing target painted by the Renderer.
type Surface interface {
	Size() (width, height int)
	Clear()
	Draw(f Frame, r Rect)
}

// AudioTrack is the single audio element of a bulletin.
type AudioTrack interface {
	Play() error
	Pause()
	Rewind()
	Paused() bool
	Ended() bool
}

// FrameScheduler delivers display-refresh callbacks. Callbacks must run on
// the goroutine that owns the player components.
type FrameScheduler interface {
	Now() time.Time
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// Dispatcher queues work onto the goroutine that owns the player components.
// Post reports false when the work was dropped because the owner is gone.
type Dispatcher interface {
	Post(fn func()) bool
}

// Host bundles the platform bindings one Session needs.
type Host struct {
	Decoder Decoder
	Surface Surface
	Audio   AudioTrack
	Frames  FrameScheduler
	Capture CaptureHost
}
