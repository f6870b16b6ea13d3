package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	appconfig "github.com/snappy-loop/bulletin/internal/config"
	"github.com/spf13/afero"
)

// maxIntroBytes bounds the intro asset read into memory.
const maxIntroBytes = 16 << 20

// ErrIntroNotFound is returned when no intro source is configured or the asset is missing.
var ErrIntroNotFound = errors.New("intro asset not found")

// ObjectGetter fetches an object by key.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (*Object, error)
}

// Intro is the fixed audio asset that opens every bulletin.
type Intro struct {
	Data     []byte
	MimeType string // empty when the extension is unknown; audiomix sniffs the bytes
	Source   string
}

// IntroSource locates the intro asset on a filesystem or in object storage.
// A local path takes precedence over an S3 key.
type IntroSource struct {
	Fs      afero.Fs
	Path    string
	Objects ObjectGetter
	Key     string
}

// Load reads the intro asset.
func (s IntroSource) Load(ctx context.Context) (*Intro, error) {
	if s.Path != "" && s.Fs != nil {
		intro, err := s.loadFile()
		if err == nil {
			return intro, nil
		}
		if !errors.Is(err, ErrIntroNotFound) || s.Key == "" || s.Objects == nil {
			return nil, err
		}
		log.Debug().Str("path", s.Path).Msg("Intro asset not on disk, trying S3")
	}
	if s.Key != "" && s.Objects != nil {
		return s.loadObject(ctx)
	}
	return nil, ErrIntroNotFound
}

// LoadIntro reads the configured intro asset from the OS filesystem or S3.
// It returns nil when neither source has one; bulletins then start with the narration.
func LoadIntro(ctx context.Context, cfg *appconfig.Config) *Intro {
	src := IntroSource{
		Fs:   afero.NewOsFs(),
		Path: cfg.IntroAudioPath,
		Key:  cfg.IntroAudioS3Key,
	}
	if cfg.IntroAudioS3Key != "" {
		client, err := NewClient(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize storage client, intro asset from S3 disabled")
		} else {
			src.Objects = client
		}
	}

	intro, err := src.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Intro asset unavailable, bulletins will start with the narration")
		return nil
	}
	log.Info().
		Str("source", intro.Source).
		Int("size_bytes", len(intro.Data)).
		Msg("Intro asset loaded")
	return intro
}

func (s IntroSource) loadFile() (*Intro, error) {
	f, err := s.Fs.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIntroNotFound, s.Path)
		}
		return nil, fmt.Errorf("open intro asset: %w", err)
	}
	defer f.Close()

	data, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("read intro asset %s: %w", s.Path, err)
	}
	return &Intro{Data: data, MimeType: audioMimeType(s.Path), Source: "file://" + s.Path}, nil
}

func (s IntroSource) loadObject(ctx context.Context) (*Intro, error) {
	obj, err := s.Objects.GetObject(ctx, s.Key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrIntroNotFound, err)
		}
		return nil, err
	}
	defer obj.Body.Close()

	data, err := readLimited(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read intro object %s: %w", s.Key, err)
	}
	mimeType := audioMimeType(s.Key)
	if mimeType == "" && strings.HasPrefix(obj.ContentType, "audio/") {
		mimeType = obj.ContentType
	}
	source := "s3://" + s.Key
	if c, ok := s.Objects.(*Client); ok {
		source = "s3://" + c.Bucket() + "/" + s.Key
		if u := c.PublicURL(s.Key); u != "" {
			source = u
		}
	}
	return &Intro{Data: data, MimeType: mimeType, Source: source}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxIntroBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxIntroBytes {
		return nil, fmt.Errorf("intro asset exceeds %d bytes", maxIntroBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("intro asset is empty")
	}
	return data, nil
}

func audioMimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return ""
	}
}
