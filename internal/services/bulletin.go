package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/agents"
	"github.com/snappy-loop/bulletin/internal/audiomix"
	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/llm"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/storage"
	"github.com/vincent-petithory/dataurl"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrTextRequired is returned when the story text is empty.
	ErrTextRequired = errors.New("text is required")
	// ErrTextTooLong is returned when the story text exceeds MaxInputLength.
	ErrTextTooLong = errors.New("text too long")
	// ErrImagesCount is returned when the requested image count is out of range.
	ErrImagesCount = errors.New("invalid images count")
)

// IsValidation reports whether err is a request validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTextRequired) || errors.Is(err, ErrTextTooLong) || errors.Is(err, ErrImagesCount)
}

// GeneratedAudio is a playable narration track.
type GeneratedAudio struct {
	URL      string // data URL
	MimeType string
	Duration time.Duration
}

// BulletinService turns story text into narration and thumbnails.
type BulletinService struct {
	audio  agents.AudioAgent
	image  agents.ImageAgent
	intro  *storage.Intro
	config *config.Config
	now    func() time.Time
}

// NewBulletinService creates a BulletinService. intro may be nil.
func NewBulletinService(audio agents.AudioAgent, image agents.ImageAgent, intro *storage.Intro, cfg *config.Config) *BulletinService {
	return &BulletinService{
		audio:  audio,
		image:  image,
		intro:  intro,
		config: cfg,
		now:    time.Now,
	}
}

func (s *BulletinService) validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if n := utf8.RuneCountInString(text); s.config.MaxInputLength > 0 && n > s.config.MaxInputLength {
		return "", fmt.Errorf("%w: %d characters, max %d", ErrTextTooLong, n, s.config.MaxInputLength)
	}
	return text, nil
}

func (s *BulletinService) imagesCount(requested int) (int, error) {
	if requested == 0 {
		return s.config.DefaultImagesCount, nil
	}
	if requested < 0 || requested > s.config.MaxImagesCount {
		return 0, fmt.Errorf("%w: %d, must be between 1 and %d", ErrImagesCount, requested, s.config.MaxImagesCount)
	}
	return requested, nil
}

func (s *BulletinService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.GenerationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.GenerationTimeout)
}

// GenerateAudio narrates the intro phrase followed by text and joins the
// intro asset (when loaded) in front of the speech. The result is always WAV.
func (s *BulletinService) GenerateAudio(ctx context.Context, text string) (*GeneratedAudio, error) {
	text, err := s.validateText(text)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, duration, err := s.bulletinAudio(ctx, text)
	if err != nil {
		return nil, err
	}
	return &GeneratedAudio{URL: u, MimeType: audiomix.MimeWAV, Duration: duration}, nil
}

// GenerateImage derives a thumbnail prompt from text (when enabled) and renders it as a data URL.
func (s *BulletinService) GenerateImage(ctx context.Context, text string) (string, error) {
	text, err := s.validateText(text)
	if err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.generateImage(ctx, text)
}

func (s *BulletinService) generateImage(ctx context.Context, text string) (string, error) {
	prompt := llm.FallbackImagePrompt(text)
	if s.config.StylizeImagePrompt {
		p, err := s.image.GenerateImagePrompt(ctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("Image prompt derivation failed, using fallback")
		} else if p != "" {
			prompt = p
		}
	}

	img, err := s.image.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("generate image: %w", llm.ErrEmptyResult)
	}
	return dataURL(img.Data, img.MimeType), nil
}

// narration is the spoken script: the intro phrase followed by the story.
func (s *BulletinService) narration(text string) string {
	phrase := strings.TrimSpace(s.config.IntroPhrase)
	if phrase == "" {
		return text
	}
	return phrase + " " + text
}

// GenerateBulletin produces one narration track and the requested thumbnails concurrently.
// The narration starts with the intro asset when one is loaded. Any failed part fails the bulletin.
// progress, when non-nil, is called once per finished part and never concurrently.
func (s *BulletinService) GenerateBulletin(ctx context.Context, req *models.BulletinRequest, progress func(models.Progress)) (*models.Bulletin, error) {
	text, err := s.validateText(req.Text)
	if err != nil {
		return nil, err
	}
	count, err := s.imagesCount(req.Images)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.New()
	start := s.now()
	total := count + 1
	log.Info().
		Str("bulletin_id", id.String()).
		Int("text_length", len(text)).
		Int("images", count).
		Msg("Generating bulletin")

	var mu sync.Mutex
	done := 0
	report := func(p models.Progress) {
		mu.Lock()
		defer mu.Unlock()
		done++
		p.Done = done
		p.Total = total
		if progress != nil {
			progress(p)
		}
	}

	var (
		audioURL   string
		durationMs int64
		imageURLs  = make([]string, count)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, d, err := s.bulletinAudio(gctx, text)
		if err != nil {
			return err
		}
		audioURL, durationMs = u, d.Milliseconds()
		report(models.Progress{Part: models.PartAudio})
		return nil
	})
	for i := 0; i < count; i++ {
		g.Go(func() error {
			u, err := s.generateImage(gctx, text)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			imageURLs[i] = u
			report(models.Progress{Part: models.PartImage, Index: i})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("bulletin_id", id.String()).Msg("Bulletin generation failed")
		return nil, err
	}

	log.Info().
		Str("bulletin_id", id.String()).
		Int64("duration_ms", durationMs).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Bulletin generated")

	return &models.Bulletin{
		ID:         id,
		AudioURL:   audioURL,
		ImageURLs:  imageURLs,
		DurationMs: durationMs,
		CreatedAt:  start,
	}, nil
}

func (s *BulletinService) bulletinAudio(ctx context.Context, text string) (string, time.Duration, error) {
	speech, err := s.audio.GenerateSpeech(ctx, s.narration(text))
	if err != nil {
		return "", 0, fmt.Errorf("generate speech: %w", err)
	}

	var introData []byte
	var introMime string
	if s.intro != nil {
		introData, introMime = s.intro.Data, s.intro.MimeType
	}
	wav, duration, err := audiomix.Assemble(introData, introMime, speech.Data, speech.MimeType)
	if err != nil {
		return "", 0, fmt.Errorf("assemble audio: %w", err)
	}
	return dataURL(wav, audiomix.MimeWAV), duration, nil
}

// dataURL encodes data as a base64 data URL, keeping MIME parameters.
// An unparseable type falls back to one sniffed from the bytes.
func dataURL(data []byte, mimeType string) string {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil || strings.Count(mediaType, "/") != 1 {
		mediaType, params, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	pairs := make([]string, 0, 2*len(params))
	for k, v := range params {
		pairs = append(pairs, k, v)
	}
	return dataurl.New(data, mediaType, pairs...).String()
}
