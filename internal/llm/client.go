package llm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"google.golang.org/api/option"
	unifiedgenai "google.golang.org/genai"
)

// maxGeminiResponseLogBytes is the max length of a Gemini response body to log in full (to avoid huge logs).
const maxGeminiResponseLogBytes = 8192

var (
	// ErrNotConfigured is returned when a provider has no usable client (usually a missing API key).
	ErrNotConfigured = errors.New("llm: provider not configured")
	// ErrEmptyResult is returned when a provider answers without any media.
	ErrEmptyResult = errors.New("llm: provider returned no data")
)

// httpClientForEndpoint returns an http.Client that rewrites request URLs to the given base endpoint (e.g. http://host.docker.internal:31300/gemini).
func httpClientForEndpoint(baseEndpoint string) *http.Client {
	base, err := url.Parse(baseEndpoint)
	if err != nil || base.Host == "" {
		log.Warn().Err(err).Str("endpoint", baseEndpoint).Msg("Invalid GEMINI_API_ENDPOINT, using default")
		return nil
	}
	base.Path = strings.TrimSuffix(base.Path, "/")
	return &http.Client{
		Transport: &endpointRoundTripper{base: base, next: http.DefaultTransport},
	}
}

// endpointRoundTripper rewrites request URLs to a custom base (scheme, host, path prefix).
type endpointRoundTripper struct {
	base *url.URL
	next http.RoundTripper
}

func (e *endpointRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.URL.Scheme = e.base.Scheme
	req2.URL.Host = e.base.Host
	req2.Host = e.base.Host
	req2.URL.Path = path.Join("/", e.base.Path, strings.TrimPrefix(req.URL.Path, "/"))
	if req.URL.RawQuery != "" {
		req2.URL.RawQuery = req.URL.RawQuery
	}
	return e.next.RoundTrip(req2)
}

// logGeminiResponse logs Gemini response text, truncating if over maxGeminiResponseLogBytes.
func logGeminiResponse(caller, raw string) {
	if len(raw) <= maxGeminiResponseLogBytes {
		log.Info().Str("caller", caller).Str("gemini_response", raw).Msg("Gemini response")
		return
	}
	log.Info().
		Str("caller", caller).
		Str("gemini_response", raw[:maxGeminiResponseLogBytes]+"... [truncated]").
		Int("gemini_response_len", len(raw)).
		Msg("Gemini response")
}

// Audio represents synthesized speech
type Audio struct {
	Data     []byte
	Model    string
	MimeType string // e.g. "audio/L16;rate=24000" (Gemini) or "audio/mpeg" (OpenAI)
}

// Image represents a generated image
type Image struct {
	Data       []byte
	Resolution string
	Model      string
	MimeType   string // e.g. "image/png", "image/jpeg"
}

// Client wraps the Gemini APIs
type Client struct {
	apiKey        string
	modelFlash    string
	modelImage    string               // image generation, e.g. gemini-2.5-flash-image
	modelTTS      string               // TTS model, e.g. gemini-2.5-flash-preview-tts
	ttsVoice      string               // TTS voice name, e.g. Zephyr, Puck, Aoede
	llmFlash      llms.Model           // prompt derivation
	genaiClient   *genai.Client        // for image modality
	unifiedClient *unifiedgenai.Client // unified genai SDK for TTS
}

// NewClient creates a new Gemini client.
// apiEndpoint: optional Gemini API base URL; when set, all Gemini calls use this endpoint.
func NewClient(apiKey, modelFlash, modelImage, modelTTS, ttsVoice, apiEndpoint string) *Client {
	if modelFlash == "" {
		modelFlash = "gemini-2.5-flash-lite"
	}
	if modelImage == "" {
		modelImage = "gemini-2.5-flash-image"
	}
	if modelTTS == "" {
		modelTTS = "gemini-2.5-flash-preview-tts"
	}
	if ttsVoice == "" {
		ttsVoice = "Puck"
	}

	c := &Client{
		apiKey:     apiKey,
		modelFlash: modelFlash,
		modelImage: modelImage,
		modelTTS:   modelTTS,
		ttsVoice:   ttsVoice,
	}
	if apiKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, Gemini provider disabled")
		return c
	}

	// Optional custom HTTP client for langchaingo when using a custom endpoint
	var langchaingoHTTPClient *http.Client
	if apiEndpoint != "" {
		langchaingoHTTPClient = httpClientForEndpoint(apiEndpoint)
	}

	flashOpts := []googleai.Option{googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(modelFlash)}
	if langchaingoHTTPClient != nil {
		flashOpts = append(flashOpts, googleai.WithHTTPClient(langchaingoHTTPClient))
	}
	llmFlash, err := googleai.New(context.Background(), flashOpts...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize flash model, prompt derivation uses fallback")
	} else {
		c.llmFlash = llmFlash
	}

	// genai client for strict modality (IMAGE)
	genaiOpts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if apiEndpoint != "" {
		genaiOpts = append(genaiOpts, option.WithEndpoint(apiEndpoint))
	}
	c.genaiClient, err = genai.NewClient(context.Background(), genaiOpts...)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize genai client for image generation")
		c.genaiClient = nil
	}

	// Unified genai client for TTS with response_modalities: audio
	unifiedCfg := &unifiedgenai.ClientConfig{APIKey: apiKey, Backend: unifiedgenai.BackendGeminiAPI}
	if apiEndpoint != "" {
		unifiedCfg.HTTPOptions = unifiedgenai.HTTPOptions{BaseURL: apiEndpoint}
	}
	c.unifiedClient, err = unifiedgenai.NewClient(context.Background(), unifiedCfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize unified genai client for TTS")
		c.unifiedClient = nil
	}

	log.Info().
		Str("model_flash", modelFlash).
		Str("model_image", modelImage).
		Str("model_tts", modelTTS).
		Str("tts_voice", ttsVoice).
		Str("api_endpoint", apiEndpoint).
		Bool("genai_client", c.genaiClient != nil).
		Bool("unified_tts", c.unifiedClient != nil).
		Msg("Gemini client initialized")

	return c
}

// Close releases the underlying genai client.
func (c *Client) Close() error {
	if c.genaiClient != nil {
		return c.genaiClient.Close()
	}
	return nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
