//go:build js && wasm

package webhost

import (
	"errors"
	"fmt"
	"syscall/js"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/player"
)

// mediaStream is an open MediaStream tap.
type mediaStream struct {
	v       js.Value
	onClose func()
}

// Close implements player.Stream.
func (m *mediaStream) Close() {
	if m.onClose != nil {
		m.onClose()
		m.onClose = nil
	}
	tracks := m.v.Call("getTracks")
	for i := 0; i < tracks.Length(); i++ {
		tracks.Index(i).Call("stop")
	}
}

// blobChunk is a recorded Blob.
type blobChunk struct {
	v js.Value
}

// Len implements player.Chunk.
func (b blobChunk) Len() int { return b.v.Get("size").Int() }

// Output is a finalized recording behind an object URL.
type Output struct {
	url      string
	size     int64
	mimeType string
}

// URL implements player.Output.
func (o *Output) URL() string { return o.url }

// Len implements player.Output.
func (o *Output) Len() int64 { return o.size }

// MimeType implements player.Output.
func (o *Output) MimeType() string { return o.mimeType }

// Release implements player.Output.
func (o *Output) Release() {
	if o.url == "" {
		return
	}
	global.Get("URL").Call("revokeObjectURL", o.url)
	o.url = ""
}

// CaptureHost records the canvas and the audio element with MediaRecorder.
// The audio element is routed through one AudioContext for the page's
// lifetime since an element can only be attached to a single source node.
type CaptureHost struct {
	surface *Surface
	audio   *Track

	audioCtx js.Value
	source   js.Value
}

// NewCaptureHost creates a capture host over the page's surface and track.
func NewCaptureHost(surface *Surface, audio *Track) *CaptureHost {
	return &CaptureHost{surface: surface, audio: audio}
}

// CaptureSurface implements player.CaptureHost.
func (h *CaptureHost) CaptureSurface(fps int) (player.Stream, error) {
	var stream js.Value
	err := try(func() { stream = h.surface.Canvas().Call("captureStream", fps) })
	if err != nil {
		return nil, fmt.Errorf("canvas captureStream: %w", err)
	}
	return &mediaStream{v: stream}, nil
}

// ensureGraph builds element -> speakers once.
func (h *CaptureHost) ensureGraph() error {
	if h.audioCtx.Truthy() {
		if h.audioCtx.Get("state").String() == "suspended" {
			h.audioCtx.Call("resume")
		}
		return nil
	}
	ctor := global.Get("AudioContext")
	if !ctor.Truthy() {
		ctor = global.Get("webkitAudioContext")
	}
	if !ctor.Truthy() {
		return errors.New("AudioContext not supported")
	}
	return try(func() {
		ac := ctor.New()
		src := ac.Call("createMediaElementSource", h.audio.Element())
		src.Call("connect", ac.Get("destination"))
		h.audioCtx, h.source = ac, src
	})
}

// RouteAudio implements player.CaptureHost. Local playback stays audible.
func (h *CaptureHost) RouteAudio() (player.Stream, error) {
	if err := h.ensureGraph(); err != nil {
		return nil, fmt.Errorf("route audio: %w", err)
	}
	var dest js.Value
	if err := try(func() {
		dest = h.audioCtx.Call("createMediaStreamDestination")
		h.source.Call("connect", dest)
	}); err != nil {
		return nil, fmt.Errorf("route audio: %w", err)
	}
	source := h.source
	return &mediaStream{
		v: dest.Get("stream"),
		onClose: func() {
			_ = try(func() { source.Call("disconnect", dest) })
		},
	}, nil
}

// Supports implements player.CaptureHost.
func (h *CaptureHost) Supports(mimeType string) bool {
	rec := global.Get("MediaRecorder")
	if !rec.Truthy() {
		return false
	}
	return rec.Call("isTypeSupported", mimeType).Bool()
}

// NewEncoder implements player.CaptureHost.
func (h *CaptureHost) NewEncoder(video, audio player.Stream, mimeType string, events player.EncoderEvents) (player.Encoder, error) {
	v, ok := video.(*mediaStream)
	if !ok {
		return nil, fmt.Errorf("unexpected video stream %T", video)
	}
	a, ok := audio.(*mediaStream)
	if !ok {
		return nil, fmt.Errorf("unexpected audio stream %T", audio)
	}
	if !global.Get("MediaRecorder").Truthy() {
		return nil, errors.New("MediaRecorder not supported")
	}

	tracks := global.Get("Array").New()
	appendTracks := func(list js.Value) {
		for i := 0; i < list.Length(); i++ {
			tracks.Call("push", list.Index(i))
		}
	}
	appendTracks(v.v.Call("getVideoTracks"))
	appendTracks(a.v.Call("getAudioTracks"))

	var rec js.Value
	err := try(func() {
		combined := global.Get("MediaStream").New(tracks)
		opts := map[string]any{"mimeType": mimeType}
		rec = global.Get("MediaRecorder").New(combined, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("new MediaRecorder: %w", err)
	}

	enc := &encoder{rec: rec}
	enc.onData = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		data := args[0].Get("data")
		if data.Truthy() && data.Get("size").Int() > 0 && events.Data != nil {
			events.Data(blobChunk{v: data})
		}
		return nil
	})
	enc.onStop = js.FuncOf(func(js.Value, []js.Value) any {
		enc.release()
		if events.Stopped != nil {
			events.Stopped()
		}
		return nil
	})
	rec.Set("ondataavailable", enc.onData)
	rec.Set("onstop", enc.onStop)
	return enc, nil
}

// Finalize implements player.CaptureHost.
func (h *CaptureHost) Finalize(chunks []player.Chunk, mimeType string) (player.Output, error) {
	parts := global.Get("Array").New()
	var size int64
	for _, c := range chunks {
		b, ok := c.(blobChunk)
		if !ok {
			return nil, fmt.Errorf("unexpected chunk %T", c)
		}
		parts.Call("push", b.v)
		size += int64(b.Len())
	}

	var url string
	err := try(func() {
		blob := global.Get("Blob").New(parts, map[string]any{"type": mimeType})
		url = global.Get("URL").Call("createObjectURL", blob).String()
	})
	if err != nil {
		return nil, fmt.Errorf("finalize recording: %w", err)
	}
	log.Info().Int64("size_bytes", size).Str("mime_type", mimeType).Msg("Recording finalized")
	return &Output{url: url, size: size, mimeType: mimeType}, nil
}

// encoder wraps a MediaRecorder.
type encoder struct {
	rec      js.Value
	onData   js.Func
	onStop   js.Func
	released bool
}

func (e *encoder) Start() error {
	return try(func() { e.rec.Call("start") })
}

// Stop requests the final dataavailable followed by stop.
func (e *encoder) Stop() {
	if e.rec.Get("state").String() == "inactive" {
		// onstop never fires for a recorder that is not running.
		e.release()
		return
	}
	_ = try(func() { e.rec.Call("stop") })
}

func (e *encoder) release() {
	if e.released {
		return
	}
	e.released = true
	e.rec.Set("ondataavailable", js.Null())
	e.rec.Set("onstop", js.Null())
	e.onData.Release()
	e.onStop.Release()
}

// Download saves out under filename through a temporary anchor.
func Download(out player.Output, filename string) error {
	if out == nil || out.URL() == "" {
		return errors.New("no recording to download")
	}
	a := document.Call("createElement", "a")
	a.Set("href", out.URL())
	a.Set("download", filename)
	a.Get("style").Set("display", "none")
	body := document.Get("body")
	body.Call("appendChild", a)
	a.Call("click")
	body.Call("removeChild", a)
	return nil
}
