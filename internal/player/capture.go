package player

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultFrameRate is the pixel-stream tap rate.
	DefaultFrameRate = 30
	// OutputFilename is the download name of a finalized capture.
	OutputFilename = "bulletin-video.webm"
)

// DefaultMimeTypes is the encoder preference list. The last entry is assumed
// to be supported by every host.
var DefaultMimeTypes = []string{
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=vp8,opus",
	"video/webm",
}

var (
	// ErrCaptureActive is returned by Start or Reset while a recording is running.
	ErrCaptureActive = errors.New("player: recording already in progress")
	// ErrOutputPending is returned by Start while a finalized output has not been released.
	ErrOutputPending = errors.New("player: previous recording must be released first")
	// ErrCaptureUnavailable wraps tap and encoder setup failures.
	ErrCaptureUnavailable = errors.New("player: capture unavailable")
)

// CaptureState is the capture state machine:
// idle -> recording -> (stopping) -> finalized -> idle.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
	// CaptureStopping waits for the encoder's stopped notification.
	CaptureStopping
	CaptureFinalized
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "idle"
	case CaptureRecording:
		return "recording"
	case CaptureStopping:
		return "stopping"
	case CaptureFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("CaptureState(%d)", int(s))
	}
}

// Stream is an open capture tap.
type Stream interface {
	Close()
}

// Chunk is one encoded piece of output.
type Chunk interface {
	Len() int
}

// Output is a finalized recording.
type Output interface {
	URL() string
	Len() int64
	MimeType() string
	Release()
}

// EncoderEvents are the encoder's callbacks. Hosts may invoke them from any
// goroutine; Capture re-posts them onto its dispatcher.
type EncoderEvents struct {
	Data    func(Chunk)
	Stopped func()
}

// Encoder turns a combined audio/video stream into chunks.
type Encoder interface {
	Start() error
	// Stop flushes pending data, then fires Stopped.
	Stop()
}

// CaptureHost opens taps and encoders on the platform.
type CaptureHost interface {
	// CaptureSurface taps the drawing surface's pixels at fps.
	CaptureSurface(fps int) (Stream, error)
	// RouteAudio taps the audio element while keeping local playback audible.
	RouteAudio() (Stream, error)
	Supports(mimeType string) bool
	NewEncoder(video, audio Stream, mimeType string, events EncoderEvents) (Encoder, error)
	Finalize(chunks []Chunk, mimeType string) (Output, error)
}

// CaptureEvent describes a capture state change for listeners.
type CaptureEvent struct {
	State  CaptureState
	Output Output
	Err    error
}

// Capture records the composited surface and audio while the clock plays.
type Capture struct {
	host     CaptureHost
	clock    *Clock
	dispatch Dispatcher
	fps      int
	prefs    []string

	state    CaptureState
	gen      uint64
	mimeType string
	video    Stream
	audio    Stream
	encoder  Encoder
	chunks   []Chunk
	output   Output

	listeners []func(CaptureEvent)
}

// NewCapture binds a capture session to clock. Encoder callbacks are posted
// through dispatch.
func NewCapture(host CaptureHost, clock *Clock, dispatch Dispatcher) *Capture {
	c := &Capture{
		host:     host,
		clock:    clock,
		dispatch: dispatch,
		fps:      DefaultFrameRate,
		prefs:    DefaultMimeTypes,
	}
	clock.OnStop(c.playbackStopped)
	return c
}

// State returns the capture state.
func (c *Capture) State() CaptureState { return c.state }

// MimeType returns the container/codec label chosen by the last Start.
func (c *Capture) MimeType() string { return c.mimeType }

// Output returns the finalized recording, or nil.
func (c *Capture) Output() Output {
	if c.state != CaptureFinalized {
		return nil
	}
	return c.output
}

// OnChange registers fn for every capture transition.
func (c *Capture) OnChange(fn func(CaptureEvent)) { c.listeners = append(c.listeners, fn) }

// Start opens the taps, starts the encoder and starts playback from zero.
// On any setup failure the session stays idle with nothing left attached.
func (c *Capture) Start() error {
	switch c.state {
	case CaptureRecording, CaptureStopping:
		return ErrCaptureActive
	case CaptureFinalized:
		return ErrOutputPending
	}
	if c.host == nil {
		return fmt.Errorf("%w: no capture host", ErrCaptureUnavailable)
	}
	if err := c.clock.Ready(); err != nil {
		return err
	}
	if c.clock.State() == PlaybackPlaying {
		c.clock.Stop()
	}

	mime := c.selectMimeType()

	video, err := c.host.CaptureSurface(c.fps)
	if err != nil {
		return fmt.Errorf("%w: surface tap: %w", ErrCaptureUnavailable, err)
	}
	audio, err := c.host.RouteAudio()
	if err != nil {
		video.Close()
		return fmt.Errorf("%w: audio tap: %w", ErrCaptureUnavailable, err)
	}

	c.gen++
	gen := c.gen
	enc, err := c.host.NewEncoder(video, audio, mime, EncoderEvents{
		Data: func(ch Chunk) {
			c.dispatch.Post(func() { c.appendChunk(gen, ch) })
		},
		Stopped: func() {
			c.dispatch.Post(func() { c.encoderStopped(gen) })
		},
	})
	if err != nil {
		audio.Close()
		video.Close()
		return fmt.Errorf("%w: encoder: %w", ErrCaptureUnavailable, err)
	}

	c.video, c.audio, c.encoder = video, audio, enc
	c.mimeType = mime
	c.chunks = nil
	if err := enc.Start(); err != nil {
		c.abort()
		return fmt.Errorf("%w: encoder start: %w", ErrCaptureUnavailable, err)
	}
	c.state = CaptureRecording

	if err := c.clock.Start(); err != nil {
		c.abort()
		return err
	}
	log.Info().Str("mime_type", mime).Int("fps", c.fps).Msg("Recording started")
	c.notify(CaptureEvent{State: CaptureRecording})
	return nil
}

// Stop ends the recording. The output is built once the encoder reports
// that it has stopped.
func (c *Capture) Stop() {
	if c.state != CaptureRecording {
		return
	}
	c.state = CaptureStopping
	c.encoder.Stop()
	c.clock.Stop()
}

// Reset releases a finalized output and returns to idle.
func (c *Capture) Reset() error {
	switch c.state {
	case CaptureRecording, CaptureStopping:
		return ErrCaptureActive
	case CaptureFinalized:
		c.releaseOutput()
		c.state = CaptureIdle
		c.notify(CaptureEvent{State: CaptureIdle})
	}
	return nil
}

// Close aborts any recording and releases every handle.
func (c *Capture) Close() {
	if c.state == CaptureRecording || c.state == CaptureStopping {
		c.abort()
		c.clock.Stop()
	}
	c.releaseOutput()
	c.state = CaptureIdle
}

func (c *Capture) selectMimeType() string {
	for i, m := range c.prefs {
		if i == len(c.prefs)-1 || c.host.Supports(m) {
			return m
		}
	}
	return DefaultMimeTypes[len(DefaultMimeTypes)-1]
}

func (c *Capture) playbackStopped(StopCause) {
	if c.state == CaptureRecording {
		log.Debug().Msg("Playback stopped while recording, stopping capture")
		c.Stop()
	}
}

func (c *Capture) appendChunk(gen uint64, ch Chunk) {
	if gen != c.gen || ch == nil || ch.Len() == 0 {
		return
	}
	if c.state != CaptureRecording && c.state != CaptureStopping {
		return
	}
	c.chunks = append(c.chunks, ch)
}

func (c *Capture) encoderStopped(gen uint64) {
	if gen != c.gen {
		return
	}
	if c.state != CaptureRecording && c.state != CaptureStopping {
		return
	}
	// An encoder that stops on its own still ends playback.
	if c.state == CaptureRecording {
		c.state = CaptureStopping
		c.clock.Stop()
	}

	chunks := c.chunks
	c.chunks = nil
	c.closeTaps()

	out, err := c.host.Finalize(chunks, c.mimeType)
	if err != nil {
		c.state = CaptureIdle
		log.Error().Err(err).Int("chunks", len(chunks)).Msg("Failed to finalize recording")
		c.notify(CaptureEvent{State: CaptureIdle, Err: fmt.Errorf("player: finalize recording: %w", err)})
		return
	}
	c.output = out
	c.state = CaptureFinalized
	log.Info().Int("chunks", len(chunks)).Int64("bytes", out.Len()).Msg("Recording finalized")
	c.notify(CaptureEvent{State: CaptureFinalized, Output: out})
}

// abort tears down an unfinished recording; late encoder events are ignored.
func (c *Capture) abort() {
	c.gen++
	if c.encoder != nil {
		c.encoder.Stop()
	}
	c.closeTaps()
	c.chunks = nil
	c.state = CaptureIdle
}

func (c *Capture) closeTaps() {
	if c.video != nil {
		c.video.Close()
		c.video = nil
	}
	if c.audio != nil {
		c.audio.Close()
		c.audio = nil
	}
	c.encoder = nil
}

func (c *Capture) releaseOutput() {
	if c.output != nil {
		c.output.Release()
		c.output = nil
	}
}

func (c *Capture) notify(ev CaptureEvent) {
	for _, fn := range c.listeners {
		fn(ev)
	}
}
