package headless

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/snappy-loop/bulletin/internal/audiomix"
	"github.com/vincent-petithory/dataurl"
)

// ErrNoDuration is returned when playing a track without a positive duration.
var ErrNoDuration = errors.New("headless: track has no duration")

// Clock is the time source a Track follows.
type Clock interface {
	Now() time.Time
}

// Track simulates an audio element: its position advances with the clock
// while playing and it ends once the position reaches its duration.
type Track struct {
	clock    Clock
	duration time.Duration

	playing   bool
	startedAt time.Time
	offset    time.Duration
}

// NewTrack creates a paused track of the given duration.
func NewTrack(clock Clock, duration time.Duration) *Track {
	return &Track{clock: clock, duration: duration}
}

// TrackFromAudio creates a track whose duration is read from encoded audio.
func TrackFromAudio(clock Clock, data []byte, mimeType string) (*Track, error) {
	d, err := audiomix.Duration(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("read audio duration: %w", err)
	}
	return NewTrack(clock, d), nil
}

// TrackFromLocator creates a track from a data URL audio locator.
func TrackFromLocator(_ context.Context, clock Clock, locator string) (*Track, error) {
	if !strings.HasPrefix(locator, "data:") {
		return nil, errors.New("headless: audio locator must be a data url")
	}
	du, err := dataurl.DecodeString(locator)
	if err != nil {
		return nil, fmt.Errorf("parse audio data url: %w", err)
	}
	return TrackFromAudio(clock, du.Data, du.MediaType.ContentType())
}

// Duration returns the track length.
func (t *Track) Duration() time.Duration { return t.duration }

// Position returns the playback position.
func (t *Track) Position() time.Duration {
	pos := t.offset
	if t.playing {
		pos += t.clock.Now().Sub(t.startedAt)
	}
	if pos > t.duration {
		pos = t.duration
	}
	return pos
}

// Play implements player.AudioTrack. Playing an ended track restarts it.
func (t *Track) Play() error {
	if t.duration <= 0 {
		return ErrNoDuration
	}
	if t.Ended() {
		t.offset = 0
	}
	t.playing = true
	t.startedAt = t.clock.Now()
	return nil
}

// Pause implements player.AudioTrack.
func (t *Track) Pause() {
	if !t.playing {
		return
	}
	t.offset = t.Position()
	t.playing = false
}

// Rewind implements player.AudioTrack.
func (t *Track) Rewind() {
	t.offset = 0
	t.startedAt = t.clock.Now()
}

// Paused implements player.AudioTrack. An ended track reports paused.
func (t *Track) Paused() bool { return !t.playing || t.Ended() }

// Ended implements player.AudioTrack.
func (t *Track) Ended() bool {
	return t.duration > 0 && t.Position() >= t.duration
}
