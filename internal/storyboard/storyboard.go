// Package storyboard replays a bulletin on the headless player and writes the
// frame shown at every image transition, the narration track and a manifest.
package storyboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/player"
	"github.com/snappy-loop/bulletin/internal/player/headless"
	"github.com/spf13/afero"
	"github.com/vincent-petithory/dataurl"
)

// ManifestFile is the name of the manifest written next to the frames.
const ManifestFile = "storyboard.json"

// Frame is one image transition.
type Frame struct {
	Index int    `json:"index"`
	AtMs  int64  `json:"at_ms"`
	File  string `json:"file"`
}

// Manifest describes a rendered storyboard.
type Manifest struct {
	BulletinID string  `json:"bulletin_id"`
	DurationMs int64   `json:"duration_ms"`
	IntervalMs int64   `json:"interval_ms"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	RealTime   bool    `json:"real_time"`
	Audio      string  `json:"audio"`
	Frames     []Frame `json:"frames"`
}

// inline runs posted work immediately; the simulated replay happens on the
// calling goroutine.
type inline struct{}

func (inline) Post(fn func()) bool {
	fn()
	return true
}

// recorder writes a PNG for every index change during playback. It runs on
// the goroutine that owns the session.
type recorder struct {
	fs      afero.Fs
	dir     string
	surface *headless.Surface
	now     func() time.Time

	session *player.Session
	first   time.Time
	frames  []Frame
	err     error
	stopped chan struct{}
}

func newRecorder(fs afero.Fs, dir string, surface *headless.Surface, now func() time.Time) *recorder {
	return &recorder{fs: fs, dir: dir, surface: surface, now: now, stopped: make(chan struct{})}
}

func (r *recorder) observe(ev player.Event) {
	switch ev.Kind {
	case player.EventPlaybackStopped:
		select {
		case <-r.stopped:
		default:
			close(r.stopped)
		}
	case player.EventIndexChanged:
		if r.err != nil || r.session == nil || r.session.PlaybackState() != player.PlaybackPlaying {
			return
		}
		now := r.now()
		if len(r.frames) == 0 {
			r.first = now
		}
		f := Frame{
			Index: ev.Index,
			AtMs:  now.Sub(r.first).Round(time.Millisecond).Milliseconds(),
			File:  fmt.Sprintf("frame-%03d.png", len(r.frames)),
		}
		if r.err = writePNG(r.fs, path.Join(r.dir, f.File), r.surface); r.err == nil {
			r.frames = append(r.frames, f)
		}
	}
}

// Render plays b to the end in simulated time and writes the storyboard into dir on fs.
func Render(ctx context.Context, b *models.Bulletin, fs afero.Fs, dir string) (*Manifest, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storyboard dir: %w", err)
	}

	frames := headless.NewManualScheduler(time.Unix(0, 0))
	frames.Step = 10 * time.Millisecond
	surface := headless.NewSurface(player.CanvasWidth, player.CanvasHeight)
	track, err := headless.TrackFromLocator(ctx, frames, b.AudioURL)
	if err != nil {
		return nil, fmt.Errorf("load narration: %w", err)
	}

	rec := newRecorder(fs, dir, surface, frames.Now)
	session := player.NewSession(player.Host{
		Decoder: headless.NewDecoder(nil),
		Surface: surface,
		Audio:   track,
		Frames:  frames,
		Capture: headless.NewCaptureHost(surface, frames),
	}, inline{}, rec.observe)
	rec.session = session
	defer session.Close()

	if err := session.Load(ctx, b.ImageURLs); err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	if err := session.Play(); err != nil {
		return nil, fmt.Errorf("play: %w", err)
	}
	frames.Advance(track.Duration() + time.Second)
	if rec.err != nil {
		return nil, rec.err
	}
	if session.PlaybackState() != player.PlaybackIdle {
		return nil, errors.New("storyboard: playback did not finish")
	}

	m := newManifest(b, track.Duration(), session.Interval(), rec.frames)
	return m, finish(fs, dir, b, m)
}

// RenderRealTime plays b on a player loop against the wall clock, so it
// takes as long as the narration.
func RenderRealTime(ctx context.Context, b *models.Bulletin, fs afero.Fs, dir string) (*Manifest, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storyboard dir: %w", err)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loop := player.NewLoop()
	go func() { _ = loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loop.Done()
	}()

	frames := headless.NewTickerScheduler(loop, player.DefaultFrameRate)
	go frames.Run(loopCtx)

	surface := headless.NewSurface(player.CanvasWidth, player.CanvasHeight)
	track, err := headless.TrackFromLocator(ctx, frames, b.AudioURL)
	if err != nil {
		return nil, fmt.Errorf("load narration: %w", err)
	}

	rec := newRecorder(fs, dir, surface, frames.Now)
	var session *player.Session
	err = loop.Call(ctx, func() error {
		session = player.NewSession(player.Host{
			Decoder: headless.NewDecoder(nil),
			Surface: surface,
			Audio:   track,
			Frames:  frames,
			Capture: headless.NewCaptureHost(surface, frames),
		}, loop, rec.observe)
		rec.session = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = loop.Call(context.Background(), func() error {
			session.Close()
			return nil
		})
	}()

	if err := session.Load(ctx, b.ImageURLs); err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	if err := loop.Call(ctx, session.Play); err != nil {
		return nil, fmt.Errorf("play: %w", err)
	}

	select {
	case <-rec.stopped:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var (
		recErr   error
		shown    []Frame
		interval time.Duration
	)
	if err := loop.Call(ctx, func() error {
		recErr, shown, interval = rec.err, rec.frames, session.Interval()
		return nil
	}); err != nil {
		return nil, err
	}
	if recErr != nil {
		return nil, recErr
	}

	m := newManifest(b, track.Duration(), interval, shown)
	m.RealTime = true
	return m, finish(fs, dir, b, m)
}

func newManifest(b *models.Bulletin, duration, interval time.Duration, frames []Frame) *Manifest {
	return &Manifest{
		BulletinID: b.ID.String(),
		DurationMs: duration.Milliseconds(),
		IntervalMs: interval.Milliseconds(),
		Width:      player.CanvasWidth,
		Height:     player.CanvasHeight,
		Frames:     frames,
	}
}

// finish writes the narration and the manifest.
func finish(fs afero.Fs, dir string, b *models.Bulletin, m *Manifest) error {
	var err error
	if m.Audio, err = writeAudio(fs, dir, b.AudioURL); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path.Join(dir, ManifestFile), raw, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	log.Info().
		Str("bulletin_id", m.BulletinID).
		Int("frames", len(m.Frames)).
		Int64("duration_ms", m.DurationMs).
		Bool("real_time", m.RealTime).
		Str("dir", dir).
		Msg("Storyboard rendered")
	return nil
}

func writePNG(fs afero.Fs, name string, surface *headless.Surface) error {
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := surface.EncodePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return f.Close()
}

func writeAudio(fs afero.Fs, dir, audioURL string) (string, error) {
	du, err := dataurl.DecodeString(audioURL)
	if err != nil {
		return "", fmt.Errorf("decode narration: %w", err)
	}
	name := "narration.wav"
	if du.MediaType.Subtype == "mpeg" {
		name = "narration.mp3"
	}
	if err := afero.WriteFile(fs, path.Join(dir, name), du.Data, 0o644); err != nil {
		return "", fmt.Errorf("write narration: %w", err)
	}
	return name, nil
}
