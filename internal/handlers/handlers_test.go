package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/snappy-loop/bulletin/internal/audiomix"
	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/llm"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/services"
	"github.com/snappy-loop/bulletin/internal/storage"
	"github.com/vincent-petithory/dataurl"
)

// fakeBulletinService is a minimal bulletinService for tests.
type fakeBulletinService struct {
	generateAudio    func(context.Context, string) (*services.GeneratedAudio, error)
	generateImage    func(context.Context, string) (string, error)
	generateBulletin func(context.Context, *models.BulletinRequest, func(models.Progress)) (*models.Bulletin, error)
}

func (f *fakeBulletinService) GenerateAudio(ctx context.Context, text string) (*services.GeneratedAudio, error) {
	if f.generateAudio != nil {
		return f.generateAudio(ctx, text)
	}
	return &services.GeneratedAudio{URL: "data:audio/mpeg;base64,AAAA", MimeType: "audio/mpeg"}, nil
}

func (f *fakeBulletinService) GenerateImage(ctx context.Context, text string) (string, error) {
	if f.generateImage != nil {
		return f.generateImage(ctx, text)
	}
	return "data:image/png;base64,AAAA", nil
}

func (f *fakeBulletinService) GenerateBulletin(ctx context.Context, req *models.BulletinRequest, progress func(models.Progress)) (*models.Bulletin, error) {
	if f.generateBulletin != nil {
		return f.generateBulletin(ctx, req, progress)
	}
	return &models.Bulletin{ID: uuid.New(), AudioURL: "data:audio/wav;base64,AAAA", ImageURLs: []string{"data:image/png;base64,AAAA"}, DurationMs: 1000}, nil
}

func testConfig() *config.Config {
	return &config.Config{MaxInputLength: 100, MaxImagesCount: 4, DefaultImagesCount: 2}
}

func newTestRouter(svc bulletinService) *mux.Router {
	r := mux.NewRouter()
	NewHandler(svc, testConfig()).Routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestGenerateAudio(t *testing.T) {
	var gotText string
	svc := &fakeBulletinService{generateAudio: func(_ context.Context, text string) (*services.GeneratedAudio, error) {
		gotText = text
		return &services.GeneratedAudio{URL: "data:audio/mpeg;base64,SUQz"}, nil
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/generate-audio", `{"text":"Hello"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.AudioResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if gotText != "Hello" || resp.AudioURL != "data:audio/mpeg;base64,SUQz" || resp.Message != "Audio generated successfully" {
		t.Errorf("unexpected response %+v (text %q)", resp, gotText)
	}
}

type speechFunc func(ctx context.Context, text string) (*llm.Audio, error)

func (f speechFunc) GenerateSpeech(ctx context.Context, text string) (*llm.Audio, error) {
	return f(ctx, text)
}

type noImages struct{}

func (noImages) GenerateImagePrompt(context.Context, string) (string, error) { return "", nil }
func (noImages) GenerateImage(context.Context, string) (*llm.Image, error) {
	return nil, errors.New("not used")
}

func silentWAV(t *testing.T, d time.Duration) []byte {
	t.Helper()
	const rate = 8000
	wav, err := audiomix.EncodeWAV(&audiomix.PCM{Samples: make([]int, int(d.Seconds()*rate)), SampleRate: rate})
	if err != nil {
		t.Fatal(err)
	}
	return wav
}

func TestGenerateAudioStartsWithIntro(t *testing.T) {
	var spoken string
	speech := speechFunc(func(_ context.Context, text string) (*llm.Audio, error) {
		spoken = text
		return &llm.Audio{Data: silentWAV(t, time.Second), MimeType: audiomix.MimeWAV}, nil
	})
	cfg := testConfig()
	cfg.IntroPhrase = "Welcome to your one minute bulletin."
	intro := &storage.Intro{Data: silentWAV(t, 2*time.Second), MimeType: audiomix.MimeWAV}
	svc := services.NewBulletinService(speech, noImages{}, intro, cfg)

	r := mux.NewRouter()
	NewHandler(svc, cfg).Routes(r)
	rec := doJSON(t, r, http.MethodPost, "/api/generate-audio", `{"text":"Rain tomorrow"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if spoken != "Welcome to your one minute bulletin. Rain tomorrow" {
		t.Errorf("spoken text = %q", spoken)
	}

	var resp models.AudioResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	du, err := dataurl.DecodeString(resp.AudioURL)
	if err != nil {
		t.Fatalf("decode audio url: %v", err)
	}
	if du.MediaType.ContentType() != audiomix.MimeWAV {
		t.Errorf("content type = %q", du.MediaType.ContentType())
	}
	d, err := audiomix.Duration(du.Data, audiomix.MimeWAV)
	if err != nil || d != 3*time.Second {
		t.Errorf("duration = %v, %v; want 3s (2s intro asset + 1s speech)", d, err)
	}
}

func TestGenerateEndpointsErrors(t *testing.T) {
	boom := errors.New("provider down")
	svc := &fakeBulletinService{
		generateAudio: func(_ context.Context, text string) (*services.GeneratedAudio, error) {
			if text == "" {
				return nil, services.ErrTextRequired
			}
			if text == "long" {
				return nil, fmt.Errorf("%w: 101 characters, max 100", services.ErrTextTooLong)
			}
			return nil, boom
		},
		generateImage: func(_ context.Context, text string) (string, error) {
			if text == "" {
				return "", services.ErrTextRequired
			}
			return "", boom
		},
	}
	router := newTestRouter(svc)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"audio missing text", "/api/generate-audio", `{}`, 400, "Text is required"},
		{"audio too long", "/api/generate-audio", `{"text":"long"}`, 400, "text too long: 101 characters, max 100"},
		{"audio provider failure", "/api/generate-audio", `{"text":"Hi"}`, 500, "Failed to generate audio"},
		{"audio invalid json", "/api/generate-audio", `{`, 400, "invalid request body"},
		{"image missing text", "/api/generate-image", `{"text":""}`, 400, "Text is required"},
		{"image provider failure", "/api/generate-image", `{"text":"Hi"}`, 500, "Failed to generate image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestGenerateImage(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeBulletinService{}), http.MethodPost, "/api/generate-image", `{"text":"Cats"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.ImageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.ImageURL, "data:image/png;base64,") || resp.Message != "Image generated successfully" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestCreateBulletin(t *testing.T) {
	var gotReq *models.BulletinRequest
	svc := &fakeBulletinService{generateBulletin: func(_ context.Context, req *models.BulletinRequest, _ func(models.Progress)) (*models.Bulletin, error) {
		gotReq = req
		return &models.Bulletin{ID: uuid.New(), AudioURL: "data:audio/wav;base64,UklG", ImageURLs: []string{"a", "b", "c"}, DurationMs: 4200}, nil
	}}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/bulletins", `{"text":"News","images":3}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if gotReq.Text != "News" || gotReq.Images != 3 {
		t.Errorf("request = %+v", gotReq)
	}
	if resp["durationMs"] != float64(4200) || len(resp["imageUrls"].([]any)) != 3 || resp["audioUrl"] == "" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestCreateBulletinErrors(t *testing.T) {
	svc := &fakeBulletinService{generateBulletin: func(_ context.Context, req *models.BulletinRequest, _ func(models.Progress)) (*models.Bulletin, error) {
		if req.Images > 4 {
			return nil, fmt.Errorf("%w: %d", services.ErrImagesCount, req.Images)
		}
		return nil, errors.New("boom")
	}}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/bulletins", `{"text":"x","images":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/api/bulletins", `{"text":"x"}`)
	if rec.Code != http.StatusInternalServerError || decodeError(t, rec) != "Failed to generate bulletin" {
		t.Errorf("expected generic 500, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeBulletinService{}), http.MethodGet, "/api/generate-audio", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestPages(t *testing.T) {
	router := newTestRouter(&fakeBulletinService{})

	rec := doJSON(t, router, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("index: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`id="bulletin-canvas" width="800" height="450"`, `maxlength="100"`, `<option value="2" selected>`, `/static/bootstrap.js`, `download="bulletin.wav"`} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q", want)
		}
	}

	rec = doJSON(t, router, http.MethodGet, "/about", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "SergeQuadrado") {
		t.Errorf("about: got %d", rec.Code)
	}
}

func dialWS(t *testing.T, svc bulletinService) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(svc))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/bulletins/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestBulletinsWS(t *testing.T) {
	svc := &fakeBulletinService{generateBulletin: func(_ context.Context, req *models.BulletinRequest, progress func(models.Progress)) (*models.Bulletin, error) {
		progress(models.Progress{Part: models.PartImage, Index: 0, Done: 1, Total: 2})
		progress(models.Progress{Part: models.PartAudio, Done: 2, Total: 2})
		return &models.Bulletin{ID: uuid.New(), ImageURLs: []string{"img"}, DurationMs: 2000}, nil
	}}
	conn := dialWS(t, svc)

	if err := conn.WriteJSON(models.WSInMessage{Type: models.WSTypeGenerate, Text: "Hi", Images: 1}); err != nil {
		t.Fatal(err)
	}
	var got []models.WSOutMessage
	for len(got) < 3 {
		var msg models.WSOutMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, msg)
	}
	if got[0].Type != models.WSTypeProgress || got[0].Progress.Part != models.PartImage {
		t.Errorf("first message = %+v", got[0])
	}
	if got[1].Type != models.WSTypeProgress || got[1].Progress.Done != 2 {
		t.Errorf("second message = %+v", got[1])
	}
	if got[2].Type != models.WSTypeBulletin || got[2].Bulletin == nil || got[2].Bulletin.DurationMs != 2000 {
		t.Errorf("final message = %+v", got[2])
	}
}

func TestBulletinsWSErrors(t *testing.T) {
	svc := &fakeBulletinService{generateBulletin: func(_ context.Context, req *models.BulletinRequest, _ func(models.Progress)) (*models.Bulletin, error) {
		if req.Text == "" {
			return nil, services.ErrTextRequired
		}
		return nil, errors.New("boom")
	}}
	conn := dialWS(t, svc)

	tests := []struct {
		send string
		want string
	}{
		{`not json`, "invalid JSON"},
		{`{"type":"hello"}`, "expected type: generate"},
		{`{"type":"generate","text":""}`, "Text is required"},
		{`{"type":"generate","text":"x"}`, "Failed to generate bulletin"},
	}
	for _, tt := range tests {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
			t.Fatal(err)
		}
		var msg models.WSOutMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != models.WSTypeError || !strings.HasPrefix(msg.Error, tt.want) {
			t.Errorf("send %q: got %+v, want error %q", tt.send, msg, tt.want)
		}
	}
}
