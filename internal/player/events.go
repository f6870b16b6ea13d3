package player

import "fmt"

// EventKind identifies a session event.
type EventKind int

const (
	EventImagesReady EventKind = iota
	EventImagesFailed
	EventPlaybackStarted
	EventIndexChanged
	EventPlaybackStopped
	EventRecordingStarted
	EventRecordingFinalized
	EventRecordingFailed
	EventRecordingReset
)

var eventKindNames = map[EventKind]string{
	EventImagesReady:        "images_ready",
	EventImagesFailed:       "images_failed",
	EventPlaybackStarted:    "playback_started",
	EventIndexChanged:       "index_changed",
	EventPlaybackStopped:    "playback_stopped",
	EventRecordingStarted:   "recording_started",
	EventRecordingFinalized: "recording_finalized",
	EventRecordingFailed:    "recording_failed",
	EventRecordingReset:     "recording_reset",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to the session observer on the owning goroutine.
type Event struct {
	Kind    EventKind
	Session string
	// Index is the displayed image for EventIndexChanged.
	Index int
	// Count is the number of images for EventImagesReady.
	Count  int
	Cause  StopCause
	Output Output
	Err    error
}
