package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/spf13/afero"
)

type fakeObjects struct {
	getObject func(ctx context.Context, key string) (*Object, error)
}

func (f *fakeObjects) GetObject(ctx context.Context, key string) (*Object, error) {
	return f.getObject(ctx, key)
}

func TestIntroSourceLocalFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "static/intro.mp3", []byte("ID3intro"), 0o644); err != nil {
		t.Fatal(err)
	}
	called := false
	src := IntroSource{
		Fs:   fs,
		Path: "static/intro.mp3",
		Objects: &fakeObjects{getObject: func(context.Context, string) (*Object, error) {
			called = true
			return nil, errors.New("unexpected")
		}},
		Key: "intro.mp3",
	}

	intro, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(intro.Data) != "ID3intro" || intro.MimeType != "audio/mpeg" {
		t.Errorf("got %q %q", intro.Data, intro.MimeType)
	}
	if called {
		t.Error("S3 consulted although local file exists")
	}
}

func TestIntroSourceFallsBackToS3(t *testing.T) {
	var gotKey string
	src := IntroSource{
		Fs:   afero.NewMemMapFs(),
		Path: "missing.mp3",
		Objects: &fakeObjects{getObject: func(_ context.Context, key string) (*Object, error) {
			gotKey = key
			return &Object{Body: io.NopCloser(bytes.NewReader([]byte("RIFFwav")))}, nil
		}},
		Key: "assets/intro.wav",
	}

	intro, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gotKey != "assets/intro.wav" {
		t.Errorf("key = %q", gotKey)
	}
	if intro.MimeType != "audio/wav" || intro.Source != "s3://assets/intro.wav" {
		t.Errorf("got %q %q", intro.MimeType, intro.Source)
	}
}

func TestIntroSourceNotConfigured(t *testing.T) {
	if _, err := (IntroSource{}).Load(context.Background()); !errors.Is(err, ErrIntroNotFound) {
		t.Errorf("err = %v, want ErrIntroNotFound", err)
	}
	src := IntroSource{Fs: afero.NewMemMapFs(), Path: "nope.mp3"}
	if _, err := src.Load(context.Background()); !errors.Is(err, ErrIntroNotFound) {
		t.Errorf("err = %v, want ErrIntroNotFound", err)
	}
}

func TestIntroSourceS3Details(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		obj      *Object
		err      error
		wantMime string
		wantErr  error
	}{
		{"content type when extension unknown", "intro", &Object{ContentType: "audio/ogg"}, nil, "audio/ogg", nil},
		{"extension wins", "intro.mp3", &Object{ContentType: "application/octet-stream"}, nil, "audio/mpeg", nil},
		{"non-audio content type ignored", "intro", &Object{ContentType: "text/plain"}, nil, "", nil},
		{"missing key", "intro.mp3", nil, fmt.Errorf("%w: s3://b/intro.mp3", ErrObjectNotFound), "", ErrIntroNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := IntroSource{
				Key: tt.key,
				Objects: &fakeObjects{getObject: func(context.Context, string) (*Object, error) {
					if tt.obj != nil {
						tt.obj.Body = io.NopCloser(bytes.NewReader([]byte("audio")))
					}
					return tt.obj, tt.err
				}},
			}
			intro, err := src.Load(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if intro.MimeType != tt.wantMime {
				t.Errorf("MimeType = %q, want %q", intro.MimeType, tt.wantMime)
			}
		})
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"", true, ""},
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.internal", true, "https://minio.internal"},
		{"https://acct.r2.cloudflarestorage.com", false, "https://acct.r2.cloudflarestorage.com"},
	}
	for _, tt := range tests {
		if got := endpointURL(tt.endpoint, tt.ssl); got != tt.want {
			t.Errorf("endpointURL(%q, %v) = %q, want %q", tt.endpoint, tt.ssl, got, tt.want)
		}
	}
}

func TestIntroSourceEmptyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "intro.mp3", nil, 0o644)
	if _, err := (IntroSource{Fs: fs, Path: "intro.mp3"}).Load(context.Background()); err == nil {
		t.Error("expected error for empty asset")
	}
}

func TestAudioMimeType(t *testing.T) {
	tests := map[string]string{
		"intro.mp3":    "audio/mpeg",
		"INTRO.MP3":    "audio/mpeg",
		"a/b/c.wav":    "audio/wav",
		"intro.ogg":    "",
		"no-extension": "",
	}
	for in, want := range tests {
		if got := audioMimeType(in); got != want {
			t.Errorf("audioMimeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadIntro(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intro.wav")
	if err := os.WriteFile(path, []byte("RIFFintro"), 0o644); err != nil {
		t.Fatal(err)
	}

	intro := LoadIntro(context.Background(), &config.Config{IntroAudioPath: path})
	if intro == nil {
		t.Fatal("expected intro asset")
	}
	if intro.MimeType != "audio/wav" || intro.Source != "file://"+path || string(intro.Data) != "RIFFintro" {
		t.Errorf("unexpected intro: %q %q %q", intro.MimeType, intro.Source, intro.Data)
	}

	missing := &config.Config{IntroAudioPath: filepath.Join(t.TempDir(), "missing.mp3")}
	if got := LoadIntro(context.Background(), missing); got != nil {
		t.Errorf("expected nil for missing asset, got %+v", got)
	}
}
