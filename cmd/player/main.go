//go:build js && wasm

// Command player is the bulletin page, compiled to WebAssembly. It requests a
// bulletin from the API, then drives one player session per bulletin.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall/js"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/player"
	"github.com/snappy-loop/bulletin/internal/player/webhost"
)

// requestTimeout bounds one bulletin generation round trip.
const requestTimeout = 3 * time.Minute

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true})
	level := zerolog.InfoLevel
	if u, err := url.Parse(js.Global().Get("location").Get("href").String()); err == nil {
		if l, err := zerolog.ParseLevel(u.Query().Get("log")); err == nil && l != zerolog.NoLevel {
			level = l
		}
	}
	zerolog.SetGlobalLevel(level)

	loop := player.NewLoop()
	go func() {
		if err := loop.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("Player loop exited")
		}
	}()

	p, err := newPage(loop)
	if err != nil {
		log.Error().Err(err).Msg("Bulletin page unavailable")
		return
	}
	p.bind()
	log.Info().Msg("Bulletin player ready")
	select {}
}

// page owns the DOM bindings and the current session. Everything except the
// generation request runs on the loop.
type page struct {
	loop *player.Loop

	form, text, images, generate, status    js.Value
	section, dots, recStatus, downloadAudio js.Value
	buttons                                 map[string]js.Value

	surface *webhost.Surface
	track   *webhost.Track
	capture *webhost.CaptureHost
	frames  *webhost.FrameScheduler

	session    *player.Session
	bulletin   *models.Bulletin
	generating bool
}

func newPage(loop *player.Loop) (*page, error) {
	p := &page{loop: loop, buttons: map[string]js.Value{}}
	ids := map[string]*js.Value{
		"bulletin-form":    &p.form,
		"text":             &p.text,
		"images":           &p.images,
		"generate":         &p.generate,
		"status":           &p.status,
		"player":           &p.section,
		"progress-dots":    &p.dots,
		"recording-status": &p.recStatus,
		"download-audio":   &p.downloadAudio,
	}
	for id, dst := range ids {
		el, err := webhost.ElementByID(id)
		if err != nil {
			return nil, err
		}
		*dst = el
	}
	for _, id := range []string{"play", "stop", "record", "stop-recording", "download-video", "reset-recording", "start-over"} {
		el, err := webhost.ElementByID(id)
		if err != nil {
			return nil, err
		}
		p.buttons[id] = el
	}

	canvas, err := webhost.ElementByID("bulletin-canvas")
	if err != nil {
		return nil, err
	}
	audio, err := webhost.ElementByID("bulletin-audio")
	if err != nil {
		return nil, err
	}
	p.surface = webhost.NewSurface(canvas)
	p.track = webhost.NewTrack(audio)
	p.capture = webhost.NewCaptureHost(p.surface, p.track)
	p.frames = webhost.NewFrameScheduler(loop)
	return p, nil
}

func (p *page) bind() {
	webhost.Listen(p.form, "submit", func(ev js.Value) {
		ev.Call("preventDefault")
		text := p.text.Get("value").String()
		images, _ := strconv.Atoi(p.images.Get("value").String())
		p.loop.Post(func() { p.requestBulletin(text, images) })
	})
	p.track.OnEnded(func() {
		p.loop.Post(func() {
			if p.session != nil {
				p.session.AudioEnded()
			}
		})
	})

	p.onClick("play", func(s *player.Session) {
		if err := s.Play(); err != nil {
			p.setStatus(p.recStatus, "Cannot play: "+err.Error())
		}
	})
	p.onClick("stop", func(s *player.Session) { s.Stop() })
	p.onClick("record", func(s *player.Session) {
		if err := s.Record(); err != nil {
			p.setStatus(p.recStatus, "Cannot record: "+err.Error())
		}
	})
	p.onClick("stop-recording", func(s *player.Session) { s.StopRecording() })
	p.onClick("download-video", func(s *player.Session) {
		if err := webhost.Download(s.Output(), player.OutputFilename); err != nil {
			p.setStatus(p.recStatus, err.Error())
		}
	})
	p.onClick("reset-recording", func(s *player.Session) {
		if err := s.ResetRecording(); err != nil {
			p.setStatus(p.recStatus, err.Error())
		}
	})
	webhost.Listen(p.buttons["start-over"], "click", func(js.Value) {
		p.loop.Post(p.startOver)
	})
}

// onClick runs fn on the loop against the current session.
func (p *page) onClick(id string, fn func(s *player.Session)) {
	webhost.Listen(p.buttons[id], "click", func(js.Value) {
		p.loop.Post(func() {
			if p.session != nil {
				fn(p.session)
				p.refreshControls()
			}
		})
	})
}

func (p *page) requestBulletin(text string, images int) {
	if p.generating {
		return
	}
	if strings.TrimSpace(text) == "" {
		p.setStatus(p.status, "Text is required")
		return
	}
	p.generating = true
	p.generate.Set("disabled", true)
	p.setStatus(p.status, "Generating your bulletin…")

	go func() {
		b, err := fetchBulletin(text, images)
		p.loop.Post(func() {
			p.generating = false
			p.generate.Set("disabled", false)
			if err != nil {
				log.Error().Err(err).Msg("Bulletin request failed")
				p.setStatus(p.status, err.Error())
				return
			}
			p.setStatus(p.status, "")
			p.show(b)
		})
	}()
}

// fetchBulletin posts to the API through the fetch-backed http transport.
func fetchBulletin(text string, images int) (*models.Bulletin, error) {
	body, err := json.Marshal(models.BulletinRequest{Text: text, Images: images})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/api/bulletins", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request bulletin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			return nil, errors.New(e.Error)
		}
		return nil, fmt.Errorf("request bulletin: status %d", resp.StatusCode)
	}
	var b models.Bulletin
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bulletin: %w", err)
	}
	return &b, nil
}

// show replaces the current session with a fresh one for b.
func (p *page) show(b *models.Bulletin) {
	if p.session != nil {
		p.session.Close()
	}
	p.bulletin = b
	p.track.SetSource(b.AudioURL)
	p.downloadAudio.Set("href", b.AudioURL)
	p.downloadAudio.Set("hidden", false)
	p.renderDots(len(b.ImageURLs), 0)
	p.section.Set("hidden", false)
	p.setStatus(p.recStatus, "Loading images…")

	s := player.NewSession(player.Host{
		Decoder: webhost.NewDecoder(),
		Surface: p.surface,
		Audio:   p.track,
		Frames:  p.frames,
		Capture: p.capture,
	}, p.loop, p.observe)
	p.session = s
	p.refreshControls()

	urls := b.ImageURLs
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Load(ctx, urls); err != nil && !errors.Is(err, player.ErrStaleLoad) {
			log.Warn().Err(err).Str("session", s.ID).Msg("Image load failed")
		}
	}()
}

func (p *page) startOver() {
	if p.session != nil {
		p.session.Close()
		p.session = nil
	}
	p.bulletin = nil
	p.track.SetSource("")
	p.section.Set("hidden", true)
	p.downloadAudio.Set("hidden", true)
	p.text.Set("value", "")
	p.setStatus(p.status, "")
	p.setStatus(p.recStatus, "")
}

// observe runs on the loop for every session event.
func (p *page) observe(ev player.Event) {
	if p.session == nil || ev.Session != p.session.ID {
		return
	}
	switch ev.Kind {
	case player.EventImagesReady:
		p.setStatus(p.recStatus, "")
		p.renderDots(ev.Count, 0)
	case player.EventImagesFailed:
		p.setStatus(p.recStatus, "Could not load images: "+ev.Err.Error())
	case player.EventIndexChanged:
		p.renderDots(len(p.bulletin.ImageURLs), ev.Index)
	case player.EventRecordingStarted:
		p.setStatus(p.recStatus, "Recording in progress… ("+p.session.RecordingMimeType()+")")
	case player.EventRecordingFinalized:
		p.setStatus(p.recStatus, fmt.Sprintf("Recording ready (%.1f MB)", float64(ev.Output.Len())/(1<<20)))
	case player.EventRecordingFailed:
		p.setStatus(p.recStatus, "Recording failed: "+ev.Err.Error())
	case player.EventRecordingReset:
		p.setStatus(p.recStatus, "")
	}
	p.refreshControls()
}

func (p *page) refreshControls() {
	s := p.session
	ready := s != nil && s.Ready()
	playing := ready && s.PlaybackState() == player.PlaybackPlaying
	capture := player.CaptureIdle
	if s != nil {
		capture = s.CaptureState()
	}
	busy := capture == player.CaptureRecording || capture == player.CaptureStopping

	p.buttons["play"].Set("disabled", !ready || playing || busy)
	p.buttons["stop"].Set("disabled", !playing || busy)
	p.buttons["record"].Set("disabled", !ready || capture != player.CaptureIdle)
	p.buttons["stop-recording"].Set("hidden", capture != player.CaptureRecording)
	p.buttons["download-video"].Set("hidden", capture != player.CaptureFinalized)
	p.buttons["reset-recording"].Set("hidden", capture != player.CaptureFinalized)
}

func (p *page) renderDots(n, current int) {
	p.dots.Set("innerHTML", "")
	for i := 0; i < n; i++ {
		dot := js.Global().Get("document").Call("createElement", "span")
		cls := "dot"
		if i == current {
			cls += " active"
		}
		dot.Set("className", cls)
		p.dots.Call("appendChild", dot)
	}
}

func (p *page) setStatus(el js.Value, msg string) {
	el.Set("textContent", msg)
}
