package headless

import (
	"bytes"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/player"
	"github.com/vincent-petithory/dataurl"
)

// MimeTypePNGSequence labels headless recordings: concatenated PNG snapshots.
const MimeTypePNGSequence = "application/x-png-sequence"

// Chunk is one encoded capture chunk.
type Chunk []byte

// Len implements player.Chunk.
func (c Chunk) Len() int { return len(c) }

// Output is a finalized in-memory recording.
type Output struct {
	data      []byte
	container string
	released  bool
}

// URL returns the recording as a data URL, or "" once released.
func (o *Output) URL() string {
	if o.released {
		return ""
	}
	return dataurl.New(o.data, MimeTypePNGSequence).String()
}

// Len implements player.Output.
func (o *Output) Len() int64 { return int64(len(o.data)) }

// MimeType implements player.Output. It reports what the bytes are, not the
// container the capture session negotiated.
func (o *Output) MimeType() string { return MimeTypePNGSequence }

// Container returns the type negotiated by the capture session.
func (o *Output) Container() string { return o.container }

// Bytes returns the recording contents.
func (o *Output) Bytes() []byte { return o.data }

// Released reports whether Release was called.
func (o *Output) Released() bool { return o.released }

// Release implements player.Output.
func (o *Output) Release() {
	o.data = nil
	o.released = true
}

type tap interface {
	player.Stream
	open() bool
}

type surfaceTap struct {
	surface *Surface
	fps     int
	closed  bool
}

func (t *surfaceTap) Close()     { t.closed = true }
func (t *surfaceTap) open() bool { return !t.closed }

type audioTap struct {
	closed bool
}

func (t *audioTap) Close()     { t.closed = true }
func (t *audioTap) open() bool { return !t.closed }

// CaptureHost records PNG snapshots of a Surface at the tap frame rate.
// It has no media encoder: outputs hold a PNG sequence whatever container
// was negotiated, which Output.Container keeps.
type CaptureHost struct {
	surface   *Surface
	frames    player.FrameScheduler
	supported map[string]bool

	// SurfaceErr, when set, makes CaptureSurface fail.
	SurfaceErr error

	taps []tap
}

// NewCaptureHost creates a capture host for surface. supported lists the
// container types it claims to encode.
func NewCaptureHost(surface *Surface, frames player.FrameScheduler, supported ...string) *CaptureHost {
	h := &CaptureHost{surface: surface, frames: frames, supported: map[string]bool{}}
	for _, m := range supported {
		h.supported[m] = true
	}
	return h
}

// OpenTaps returns how many taps are still attached.
func (h *CaptureHost) OpenTaps() int {
	n := 0
	for _, t := range h.taps {
		if t.open() {
			n++
		}
	}
	return n
}

// CaptureSurface implements player.CaptureHost.
func (h *CaptureHost) CaptureSurface(fps int) (player.Stream, error) {
	if h.SurfaceErr != nil {
		return nil, h.SurfaceErr
	}
	if fps <= 0 {
		return nil, errors.New("frame rate must be positive")
	}
	t := &surfaceTap{surface: h.surface, fps: fps}
	h.taps = append(h.taps, t)
	return t, nil
}

// RouteAudio implements player.CaptureHost.
func (h *CaptureHost) RouteAudio() (player.Stream, error) {
	t := &audioTap{}
	h.taps = append(h.taps, t)
	return t, nil
}

// Supports implements player.CaptureHost.
func (h *CaptureHost) Supports(mimeType string) bool { return h.supported[mimeType] }

// NewEncoder implements player.CaptureHost.
func (h *CaptureHost) NewEncoder(video, _ player.Stream, mimeType string, events player.EncoderEvents) (player.Encoder, error) {
	st, ok := video.(*surfaceTap)
	if !ok {
		return nil, errors.New("video stream was not opened by this host")
	}
	return &encoder{
		tap:    st,
		frames: h.frames,
		period: time.Second / time.Duration(st.fps),
		events: events,
	}, nil
}

// Finalize implements player.CaptureHost.
func (h *CaptureHost) Finalize(chunks []player.Chunk, mimeType string) (player.Output, error) {
	var buf bytes.Buffer
	for _, c := range chunks {
		ch, ok := c.(Chunk)
		if !ok {
			return nil, errors.New("chunk was not produced by this host")
		}
		buf.Write(ch)
	}
	return &Output{data: buf.Bytes(), container: mimeType}, nil
}

type encoder struct {
	tap    *surfaceTap
	frames player.FrameScheduler
	period time.Duration
	events player.EncoderEvents

	running bool
	last    time.Time
	cancel  func()
}

func (e *encoder) Start() error {
	if e.running {
		return errors.New("encoder already started")
	}
	e.running = true
	e.cancel = e.frames.RequestFrame(e.sample)
	return nil
}

func (e *encoder) sample(now time.Time) {
	if !e.running {
		return
	}
	if e.last.IsZero() || now.Sub(e.last) >= e.period {
		e.last = now
		e.emit()
	}
	e.cancel = e.frames.RequestFrame(e.sample)
}

func (e *encoder) emit() {
	var buf bytes.Buffer
	if err := e.tap.surface.EncodePNG(&buf); err != nil {
		log.Warn().Err(err).Msg("Failed to encode capture frame")
		return
	}
	e.events.Data(Chunk(buf.Bytes()))
}

// Stop flushes a final frame, then reports stopped.
func (e *encoder) Stop() {
	if !e.running {
		return
	}
	e.running = false
	if e.cancel != nil {
		e.cancel()
	}
	e.emit()
	e.events.Stopped()
}
