package player

import (
	"context"
	"errors"
	"time"
)

type inlineDispatcher struct{}

func (inlineDispatcher) Post(fn func()) bool {
	fn()
	return true
}

type fakeFrame struct{ w, h int }

func (f fakeFrame) Size() (int, int) { return f.w, f.h }

type fakeDecoder struct {
	decode func(ctx context.Context, locator string) (Frame, error)
}

func (d *fakeDecoder) Decode(ctx context.Context, locator string) (Frame, error) {
	if d.decode != nil {
		return d.decode(ctx, locator)
	}
	return fakeFrame{w: 1024, h: 1024}, nil
}

type fakeSurface struct {
	w, h   int
	clears int
	draws  []Rect
}

func (s *fakeSurface) Size() (int, int) { return s.w, s.h }
func (s *fakeSurface) Clear()           { s.clears++ }
func (s *fakeSurface) Draw(_ Frame, r Rect) {
	s.draws = append(s.draws, r)
}

// manualFrames fires pending frame callbacks every step of simulated time.
type manualFrames struct {
	now     time.Time
	step    time.Duration
	seq     int
	pending map[int]func(time.Time)
}

func newManualFrames() *manualFrames {
	return &manualFrames{
		now:     time.Unix(1_700_000_000, 0),
		step:    10 * time.Millisecond,
		pending: map[int]func(time.Time){},
	}
}

func (m *manualFrames) Now() time.Time { return m.now }

func (m *manualFrames) RequestFrame(fn func(time.Time)) func() {
	m.seq++
	id := m.seq
	m.pending[id] = fn
	return func() { delete(m.pending, id) }
}

func (m *manualFrames) advance(d time.Duration) {
	end := m.now.Add(d)
	for m.now.Before(end) {
		m.now = m.now.Add(m.step)
		due := m.pending
		m.pending = map[int]func(time.Time){}
		for _, fn := range due {
			fn(m.now)
		}
	}
}

type fakeAudio struct {
	frames   *manualFrames
	duration time.Duration
	playErr  error

	playing bool
	started time.Time
	plays   int
	pauses  int
	rewinds int
}

func (a *fakeAudio) Play() error {
	if a.playErr != nil {
		return a.playErr
	}
	a.playing = true
	a.started = a.frames.Now()
	a.plays++
	return nil
}

func (a *fakeAudio) Pause() {
	a.playing = false
	a.pauses++
}

func (a *fakeAudio) Rewind() { a.rewinds++ }

func (a *fakeAudio) Paused() bool { return !a.playing }

func (a *fakeAudio) Ended() bool {
	return a.playing && a.frames.Now().Sub(a.started) >= a.duration
}

type fakeStream struct{ closed *int }

func (s fakeStream) Close() { *s.closed++ }

type fakeChunk []byte

func (c fakeChunk) Len() int { return len(c) }

type fakeOutput struct {
	n        int64
	mime     string
	released bool
}

func (o *fakeOutput) URL() string      { return "blob:fake" }
func (o *fakeOutput) Len() int64       { return o.n }
func (o *fakeOutput) MimeType() string { return o.mime }
func (o *fakeOutput) Release()         { o.released = true }

type fakeEncoder struct {
	events  EncoderEvents
	mime    string
	started bool
	stopped bool
	pending []Chunk
}

func (e *fakeEncoder) Start() error {
	e.started = true
	return nil
}

func (e *fakeEncoder) Stop() {
	if e.stopped {
		return
	}
	e.stopped = true
	for _, c := range e.pending {
		e.events.Data(c)
	}
	e.events.Stopped()
}

type fakeCaptureHost struct {
	surfaceErr  error
	audioErr    error
	finalizeErr error
	supported   map[string]bool

	videoOpened, videoClosed int
	audioOpened, audioClosed int
	encoders                 []*fakeEncoder
	outputs                  []*fakeOutput
}

func (h *fakeCaptureHost) CaptureSurface(fps int) (Stream, error) {
	if h.surfaceErr != nil {
		return nil, h.surfaceErr
	}
	if fps != DefaultFrameRate {
		return nil, errors.New("unexpected frame rate")
	}
	h.videoOpened++
	return fakeStream{closed: &h.videoClosed}, nil
}

func (h *fakeCaptureHost) RouteAudio() (Stream, error) {
	if h.audioErr != nil {
		return nil, h.audioErr
	}
	h.audioOpened++
	return fakeStream{closed: &h.audioClosed}, nil
}

func (h *fakeCaptureHost) Supports(mime string) bool { return h.supported[mime] }

func (h *fakeCaptureHost) NewEncoder(_, _ Stream, mime string, events EncoderEvents) (Encoder, error) {
	e := &fakeEncoder{events: events, mime: mime}
	h.encoders = append(h.encoders, e)
	return e, nil
}

func (h *fakeCaptureHost) Finalize(chunks []Chunk, mime string) (Output, error) {
	if h.finalizeErr != nil {
		return nil, h.finalizeErr
	}
	var n int64
	for _, c := range chunks {
		n += int64(c.Len())
	}
	out := &fakeOutput{n: n, mime: mime}
	h.outputs = append(h.outputs, out)
	return out, nil
}

func (h *fakeCaptureHost) lastEncoder() *fakeEncoder {
	if len(h.encoders) == 0 {
		return nil
	}
	return h.encoders[len(h.encoders)-1]
}

// rig is a clock and capture session over fakes with n loaded images.
type rig struct {
	frames  *manualFrames
	audio   *fakeAudio
	surface *fakeSurface
	host    *fakeCaptureHost
	clock   *Clock
	capture *Capture
}

func newRig(n int, audioDuration time.Duration) *rig {
	frames := newManualFrames()
	audio := &fakeAudio{frames: frames, duration: audioDuration}
	surface := &fakeSurface{w: 800, h: 450}
	host := &fakeCaptureHost{supported: map[string]bool{DefaultMimeTypes[0]: true}}
	clock := NewClock(audio, frames, NewRenderer(surface))
	if n > 0 {
		set := &ImageSet{}
		for i := 0; i < n; i++ {
			set.frames = append(set.frames, fakeFrame{w: 1024, h: 1024})
		}
		clock.SetImages(set)
	}
	return &rig{
		frames:  frames,
		audio:   audio,
		surface: surface,
		host:    host,
		clock:   clock,
		capture: NewCapture(host, clock, inlineDispatcher{}),
	}
}
