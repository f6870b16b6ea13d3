package player

import (
	"errors"
	"testing"
	"time"
)

func TestCaptureStartStartsPlaybackAndStopStopsBoth(t *testing.T) {
	r := newRig(4, time.Hour)

	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.capture.State() != CaptureRecording || r.clock.State() != PlaybackPlaying {
		t.Fatalf("expected recording and playing, got %v and %v", r.capture.State(), r.clock.State())
	}
	if r.capture.MimeType() != DefaultMimeTypes[0] {
		t.Errorf("expected preferred mime type, got %q", r.capture.MimeType())
	}

	enc := r.host.lastEncoder()
	enc.events.Data(fakeChunk("frame-1"))
	r.frames.advance(3 * time.Second)
	enc.pending = []Chunk{fakeChunk("tail")}

	r.capture.Stop()

	if r.capture.State() != CaptureFinalized || r.clock.State() != PlaybackIdle {
		t.Fatalf("expected finalized and idle, got %v and %v", r.capture.State(), r.clock.State())
	}
	out := r.capture.Output()
	if out == nil {
		t.Fatal("expected output")
	}
	if out.Len() != int64(len("frame-1")+len("tail")) {
		t.Errorf("output length %d, tail chunk lost", out.Len())
	}
	if out.MimeType() != DefaultMimeTypes[0] {
		t.Errorf("output mime %q", out.MimeType())
	}
	if r.host.videoClosed != 1 || r.host.audioClosed != 1 {
		t.Errorf("taps not released: video=%d audio=%d", r.host.videoClosed, r.host.audioClosed)
	}
}

func TestCaptureOutputEmptyWithoutChunks(t *testing.T) {
	r := newRig(1, time.Hour)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.host.lastEncoder().events.Data(fakeChunk(nil))
	r.capture.Stop()
	if out := r.capture.Output(); out == nil || out.Len() != 0 {
		t.Errorf("expected empty output, got %+v", out)
	}
}

func TestCaptureStartTwiceIsRejected(t *testing.T) {
	r := newRig(2, time.Hour)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.capture.Start(); !errors.Is(err, ErrCaptureActive) {
		t.Errorf("expected ErrCaptureActive, got %v", err)
	}
	if r.host.videoOpened != 1 || len(r.host.encoders) != 1 {
		t.Errorf("second start opened taps: video=%d encoders=%d", r.host.videoOpened, len(r.host.encoders))
	}
	if err := r.capture.Reset(); !errors.Is(err, ErrCaptureActive) {
		t.Errorf("reset while recording: expected ErrCaptureActive, got %v", err)
	}
}

func TestCaptureRequiresReleaseBeforeNextRecording(t *testing.T) {
	r := newRig(2, time.Hour)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.host.lastEncoder().events.Data(fakeChunk("x"))
	r.capture.Stop()

	if err := r.capture.Start(); !errors.Is(err, ErrOutputPending) {
		t.Fatalf("expected ErrOutputPending, got %v", err)
	}
	first := r.host.outputs[0]
	if err := r.capture.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !first.released || r.capture.State() != CaptureIdle || r.capture.Output() != nil {
		t.Fatalf("reset did not release output: released=%v state=%v", first.released, r.capture.State())
	}
	if err := r.capture.Start(); err != nil {
		t.Fatalf("second recording: %v", err)
	}
	if len(r.host.encoders) != 2 {
		t.Errorf("expected a second encoder, got %d", len(r.host.encoders))
	}
}

func TestCaptureAutoStopsAtAudioEnd(t *testing.T) {
	r := newRig(4, 9*time.Second)
	var states []CaptureState
	r.capture.OnChange(func(ev CaptureEvent) { states = append(states, ev.State) })

	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.host.lastEncoder().events.Data(fakeChunk("abc"))
	r.frames.advance(10 * time.Second)

	if r.capture.State() != CaptureFinalized || r.clock.State() != PlaybackIdle {
		t.Fatalf("expected finalized and idle, got %v and %v", r.capture.State(), r.clock.State())
	}
	if !r.host.lastEncoder().stopped {
		t.Error("encoder not stopped")
	}
	if len(states) != 2 || states[0] != CaptureRecording || states[1] != CaptureFinalized {
		t.Errorf("unexpected transitions %v", states)
	}
}

func TestCaptureEncoderStoppingOnItsOwnStopsPlayback(t *testing.T) {
	r := newRig(2, time.Hour)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.host.lastEncoder().Stop()
	if r.capture.State() != CaptureFinalized || r.clock.State() != PlaybackIdle {
		t.Errorf("expected finalized and idle, got %v and %v", r.capture.State(), r.clock.State())
	}
}

func TestCaptureSurfaceTapFailureLeavesNothingAttached(t *testing.T) {
	r := newRig(2, time.Hour)
	r.host.surfaceErr = errors.New("canvas is tainted")

	err := r.capture.Start()
	if !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if r.capture.State() != CaptureIdle || r.clock.State() != PlaybackIdle {
		t.Errorf("expected idle, got %v and %v", r.capture.State(), r.clock.State())
	}
	if r.host.audioOpened != 0 || len(r.host.encoders) != 0 {
		t.Errorf("audio routed or encoder created after surface failure")
	}
}

func TestCaptureAudioTapFailureClosesSurfaceTap(t *testing.T) {
	r := newRig(2, time.Hour)
	r.host.audioErr = errors.New("no audio context")

	if err := r.capture.Start(); !errors.Is(err, ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if r.host.videoOpened != 1 || r.host.videoClosed != 1 {
		t.Errorf("surface tap leaked: opened=%d closed=%d", r.host.videoOpened, r.host.videoClosed)
	}
	if r.capture.State() != CaptureIdle {
		t.Errorf("expected idle, got %v", r.capture.State())
	}
}

func TestCaptureRequiresLoadedImages(t *testing.T) {
	r := newRig(0, time.Hour)
	if err := r.capture.Start(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if r.host.videoOpened != 0 {
		t.Error("tap opened without images")
	}
}

func TestCaptureMimeTypeFallback(t *testing.T) {
	tests := []struct {
		name      string
		supported map[string]bool
		want      string
	}{
		{"vp9", map[string]bool{DefaultMimeTypes[0]: true, DefaultMimeTypes[1]: true}, DefaultMimeTypes[0]},
		{"vp8", map[string]bool{DefaultMimeTypes[1]: true}, DefaultMimeTypes[1]},
		{"generic", map[string]bool{}, "video/webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(1, time.Hour)
			r.host.supported = tt.supported
			if err := r.capture.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			if got := r.host.lastEncoder().mime; got != tt.want {
				t.Errorf("encoder mime %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCaptureFinalizeFailureReturnsToIdle(t *testing.T) {
	r := newRig(1, time.Hour)
	r.host.finalizeErr = errors.New("blob failed")
	var last CaptureEvent
	r.capture.OnChange(func(ev CaptureEvent) { last = ev })

	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.capture.Stop()
	if r.capture.State() != CaptureIdle || last.Err == nil {
		t.Errorf("expected idle with error, got %v %v", r.capture.State(), last.Err)
	}
	if err := r.capture.Start(); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestCaptureIgnoresLateEventsFromAbortedEncoder(t *testing.T) {
	r := newRig(1, time.Hour)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	old := r.host.lastEncoder()
	r.capture.Close()
	if r.capture.State() != CaptureIdle || r.clock.State() != PlaybackIdle {
		t.Fatalf("expected idle after close")
	}
	if err := r.capture.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	old.events.Data(fakeChunk("late"))
	old.events.Stopped()
	if r.capture.State() != CaptureRecording {
		t.Errorf("stale encoder event changed state to %v", r.capture.State())
	}
}

func TestCaptureStartRestartsRunningPlayback(t *testing.T) {
	r := newRig(3, time.Hour)
	if err := r.clock.Start(); err != nil {
		t.Fatalf("play: %v", err)
	}
	r.frames.advance(2500 * time.Millisecond)
	if err := r.capture.Start(); err != nil {
		t.Fatalf("record: %v", err)
	}
	if r.clock.Index() != 0 || r.audio.plays != 2 {
		t.Errorf("recording did not restart playback: index=%d plays=%d", r.clock.Index(), r.audio.plays)
	}
	if r.capture.State() != CaptureRecording {
		t.Errorf("expected recording, got %v", r.capture.State())
	}
}
