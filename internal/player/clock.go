package player

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is how long each image stays on screen.
const DefaultInterval = 2000 * time.Millisecond

var (
	// ErrNotReady is returned when playback starts before a non-empty image set is loaded.
	ErrNotReady = errors.New("player: images not ready")
	// ErrNoAudio is returned when playback starts without an audio track.
	ErrNoAudio = errors.New("player: no audio track")
)

// PlaybackState is the clock's state machine: idle -> playing -> idle.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPlaying:
		return "playing"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
}

// StopCause tells listeners why playback stopped.
type StopCause int

const (
	// StopExplicit is a Stop call (user action or a capture stop).
	StopExplicit StopCause = iota
	// StopEnded means the audio track paused or reached its end on its own.
	StopEnded
)

func (c StopCause) String() string {
	if c == StopEnded {
		return "ended"
	}
	return "explicit"
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) ClockOption {
	return func(c *Clock) {
		if d > 0 {
			c.interval = d
		}
	}
}

// Clock advances the displayed image on a fixed wall-clock interval while the
// audio track plays. Advancement is based on elapsed time, not tick count, so
// irregular refresh cadence never speeds it up.
type Clock struct {
	audio    AudioTrack
	frames   FrameScheduler
	renderer *Renderer
	interval time.Duration

	images      *ImageSet
	state       PlaybackState
	index       int
	lastAdvance time.Time
	cancel      func()

	onStart []func()
	onIndex []func(int)
	onStop  []func(StopCause)
}

// NewClock creates an idle clock. audio may be nil until SetAudio is called.
func NewClock(audio AudioTrack, frames FrameScheduler, renderer *Renderer, opts ...ClockOption) *Clock {
	c := &Clock{
		audio:    audio,
		frames:   frames,
		renderer: renderer,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetImages replaces the decoded set. Playback in progress is stopped first.
func (c *Clock) SetImages(set *ImageSet) {
	if c.state == PlaybackPlaying {
		c.Stop()
	}
	c.images = set
	c.index = 0
	c.renderer.Render(set.At(0))
}

// SetAudio replaces the audio track. Playback in progress is stopped first.
func (c *Clock) SetAudio(audio AudioTrack) {
	if c.state == PlaybackPlaying {
		c.Stop()
	}
	c.audio = audio
}

// Ready returns nil when Start's preconditions hold.
func (c *Clock) Ready() error {
	if c.images.Len() == 0 {
		return ErrNotReady
	}
	if c.audio == nil {
		return ErrNoAudio
	}
	return nil
}

// State returns the playback state.
func (c *Clock) State() PlaybackState { return c.state }

// Index returns the displayed image index.
func (c *Clock) Index() int { return c.index }

// Interval returns the advance interval.
func (c *Clock) Interval() time.Duration { return c.interval }

// OnStart registers fn to run after each transition to playing.
func (c *Clock) OnStart(fn func()) { c.onStart = append(c.onStart, fn) }

// OnIndex registers fn to run whenever the displayed index changes.
func (c *Clock) OnIndex(fn func(int)) { c.onIndex = append(c.onIndex, fn) }

// OnStop registers fn to run after each transition to idle.
func (c *Clock) OnStop(fn func(StopCause)) { c.onStop = append(c.onStop, fn) }

// Start plays the audio from zero, shows image 0 and begins the refresh loop.
// Starting an already playing clock is a no-op.
func (c *Clock) Start() error {
	if err := c.Ready(); err != nil {
		return err
	}
	if c.state == PlaybackPlaying {
		return nil
	}

	c.audio.Rewind()
	if err := c.audio.Play(); err != nil {
		return fmt.Errorf("player: start audio: %w", err)
	}

	c.state = PlaybackPlaying
	c.lastAdvance = c.frames.Now()
	c.setIndex(0, true)
	c.schedule()
	for _, fn := range c.onStart {
		fn()
	}
	return nil
}

// Stop pauses and rewinds the audio and cancels the refresh loop.
func (c *Clock) Stop() {
	if c.audio != nil {
		c.audio.Pause()
		c.audio.Rewind()
	}
	if c.state == PlaybackPlaying {
		c.halt(StopExplicit)
	}
}

// AudioEnded lets hosts report the track's end event without waiting for
// the next refresh tick.
func (c *Clock) AudioEnded() {
	if c.state == PlaybackPlaying {
		c.halt(StopEnded)
	}
}

func (c *Clock) schedule() {
	c.cancel = c.frames.RequestFrame(c.tick)
}

func (c *Clock) tick(now time.Time) {
	if c.state != PlaybackPlaying {
		return
	}
	c.cancel = nil
	if c.audio.Paused() || c.audio.Ended() {
		c.halt(StopEnded)
		return
	}
	if now.Sub(c.lastAdvance) >= c.interval {
		c.lastAdvance = now
		c.setIndex((c.index+1)%c.images.Len(), false)
	}
	c.schedule()
}

func (c *Clock) halt(cause StopCause) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = PlaybackIdle
	c.setIndex(0, false)
	for _, fn := range c.onStop {
		fn(cause)
	}
}

func (c *Clock) setIndex(i int, force bool) {
	if i == c.index && !force {
		return
	}
	c.index = i
	c.renderer.Render(c.images.At(i))
	for _, fn := range c.onIndex {
		fn(i)
	}
}
