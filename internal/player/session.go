package player

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("player: session closed")

// Session owns every player component for one bulletin. "Start over"
// closes it and creates a new one; nothing is shared between sessions.
//
// Load may be called from any goroutine. All other methods must run on the
// goroutine behind the session's Dispatcher.
type Session struct {
	ID string

	dispatch Dispatcher
	observer func(Event)

	loader   *Loader
	renderer *Renderer
	clock    *Clock
	capture  *Capture
	closed   bool
}

// NewSession wires a loader, renderer, clock and capture session over host.
// observer may be nil.
func NewSession(host Host, dispatch Dispatcher, observer func(Event), opts ...ClockOption) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		dispatch: dispatch,
		observer: observer,
		loader:   NewLoader(host.Decoder),
		renderer: NewRenderer(host.Surface),
	}
	s.clock = NewClock(host.Audio, host.Frames, s.renderer, opts...)

	// Registered before the capture session so playback_stopped precedes
	// the recording events it triggers.
	s.clock.OnStart(func() {
		s.emit(Event{Kind: EventPlaybackStarted})
	})
	s.clock.OnIndex(func(i int) {
		s.emit(Event{Kind: EventIndexChanged, Index: i})
	})
	s.clock.OnStop(func(cause StopCause) {
		s.emit(Event{Kind: EventPlaybackStopped, Cause: cause})
	})
	s.capture = NewCapture(host.Capture, s.clock, dispatch)
	s.capture.OnChange(s.captureChanged)
	return s
}

// Load decodes the bulletin's images and hands the set to the clock.
// It blocks until decoding finishes and must not run on the owning goroutine.
func (s *Session) Load(ctx context.Context, locators []string) error {
	set, err := s.loader.Load(ctx, locators)
	if errors.Is(err, ErrStaleLoad) {
		return err
	}
	posted := s.dispatch.Post(func() {
		if s.closed {
			return
		}
		if err != nil {
			s.clock.SetImages(nil)
			s.emit(Event{Kind: EventImagesFailed, Err: err})
			return
		}
		if s.loader.Images() != set {
			return
		}
		s.clock.SetImages(set)
		s.emit(Event{Kind: EventImagesReady, Count: set.Len()})
	})
	if !posted {
		return ErrLoopClosed
	}
	return err
}

// Ready reports whether the images are decoded.
func (s *Session) Ready() bool { return s.loader.Ready() }

// Play starts playback from the beginning.
func (s *Session) Play() error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.clock.Start()
}

// Stop stops playback; a running recording stops with it.
func (s *Session) Stop() {
	if s.closed {
		return
	}
	s.clock.Stop()
}

// Record starts a capture, which also starts playback.
func (s *Session) Record() error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.capture.Start(); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Failed to start recording")
		s.emit(Event{Kind: EventRecordingFailed, Err: err})
		return err
	}
	return nil
}

// StopRecording stops a running capture.
func (s *Session) StopRecording() {
	if s.closed {
		return
	}
	s.capture.Stop()
}

// ResetRecording releases the finalized output so a new recording can start.
func (s *Session) ResetRecording() error {
	if s.closed {
		return ErrSessionClosed
	}
	return s.capture.Reset()
}

// AudioEnded forwards the audio element's end event.
func (s *Session) AudioEnded() {
	if s.closed {
		return
	}
	s.clock.AudioEnded()
}

// Output returns the finalized recording, or nil.
func (s *Session) Output() Output { return s.capture.Output() }

// PlaybackState returns the clock state.
func (s *Session) PlaybackState() PlaybackState { return s.clock.State() }

// CaptureState returns the capture state.
func (s *Session) CaptureState() CaptureState { return s.capture.State() }

// Interval returns how long each image stays on screen.
func (s *Session) Interval() time.Duration { return s.clock.Interval() }

// RecordingMimeType returns the container type chosen by the last Record.
func (s *Session) RecordingMimeType() string { return s.capture.MimeType() }

// Index returns the displayed image index.
func (s *Session) Index() int { return s.clock.Index() }

// Close stops everything, releases the recording and invalidates pending loads.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.capture.Close()
	s.clock.Stop()
	s.loader.Reset()
	s.closed = true
	log.Debug().Str("session", s.ID).Msg("Player session closed")
}

func (s *Session) captureChanged(ev CaptureEvent) {
	switch {
	case ev.Err != nil:
		s.emit(Event{Kind: EventRecordingFailed, Err: ev.Err})
	case ev.State == CaptureRecording:
		s.emit(Event{Kind: EventRecordingStarted})
	case ev.State == CaptureFinalized:
		s.emit(Event{Kind: EventRecordingFinalized, Output: ev.Output})
	case ev.State == CaptureIdle:
		s.emit(Event{Kind: EventRecordingReset})
	}
}

func (s *Session) emit(ev Event) {
	if s.observer == nil || s.closed {
		return
	}
	ev.Session = s.ID
	s.observer(ev)
}
