package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// maxFetchedImageBytes bounds the download of a URL-only image result.
const maxFetchedImageBytes = 32 << 20

// dallePromptRequest is the user message paired with creativeDirectorPrompt on OpenAI.
func dallePromptRequest(text string) string {
	return fmt.Sprintf("Create a concise DALL-E prompt for a thumbnail image based on this text: \"%s\"", strings.TrimSpace(text))
}

// OpenAIClient wraps the OpenAI speech, chat and image endpoints.
type OpenAIClient struct {
	client     *openai.Client
	httpClient *http.Client
	modelTTS   string
	ttsVoice   string
	modelImage string
	modelChat  string
}

// NewOpenAIClient creates an OpenAI client. baseURL and httpClient are optional.
// A nil client is never returned; without an API key every call fails with ErrNotConfigured.
func NewOpenAIClient(apiKey, baseURL, modelTTS, ttsVoice, modelImage, modelChat string, httpClient *http.Client) *OpenAIClient {
	if modelTTS == "" {
		modelTTS = string(openai.TTSModel1)
	}
	if ttsVoice == "" {
		ttsVoice = string(openai.VoiceAlloy)
	}
	if modelImage == "" {
		modelImage = openai.CreateImageModelDallE3
	}
	if modelChat == "" {
		modelChat = openai.GPT4
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	c := &OpenAIClient{
		httpClient: httpClient,
		modelTTS:   modelTTS,
		ttsVoice:   ttsVoice,
		modelImage: modelImage,
		modelChat:  modelChat,
	}
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY not set, OpenAI provider disabled")
		return c
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	cfg.HTTPClient = httpClient
	c.client = openai.NewClientWithConfig(cfg)

	log.Info().
		Str("model_tts", modelTTS).
		Str("tts_voice", ttsVoice).
		Str("model_image", modelImage).
		Str("model_chat", modelChat).
		Str("base_url", baseURL).
		Msg("OpenAI client initialized")
	return c
}

// GenerateSpeech synthesizes text as MP3.
func (c *OpenAIClient) GenerateSpeech(ctx context.Context, text string) (*Audio, error) {
	log.Debug().
		Int("text_length", len(text)).
		Msg("Generating speech (OpenAI)")

	if c.client == nil {
		return nil, fmt.Errorf("openai tts: %w", ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("openai tts: empty text")
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.modelTTS),
		Input:          text,
		Voice:          openai.SpeechVoice(c.ttsVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai tts: %w", ErrEmptyResult)
	}

	log.Info().
		Str("caller", "GenerateSpeech").
		Int("audio_size_bytes", len(data)).
		Str("voice", c.ttsVoice).
		Msg("TTS audio generated (OpenAI)")

	return &Audio{
		Data:     data,
		Model:    c.modelTTS,
		MimeType: "audio/mpeg",
	}, nil
}

// GenerateImagePrompt derives a thumbnail prompt with the chat model.
// Failures and empty answers fall back to FallbackImagePrompt.
func (c *OpenAIClient) GenerateImagePrompt(ctx context.Context, text string) (string, error) {
	if c.client == nil {
		return FallbackImagePrompt(text), nil
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.modelChat,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: creativeDirectorPrompt},
			{Role: openai.ChatMessageRoleUser, Content: dallePromptRequest(text)},
		},
		MaxTokens:   imagePromptMaxTokens,
		Temperature: imagePromptTemperature,
	})
	if err != nil {
		log.Error().Err(err).Msg("OpenAI image prompt generation failed, using fallback")
		return FallbackImagePrompt(text), nil
	}

	var imagePrompt string
	if len(resp.Choices) > 0 {
		imagePrompt = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if imagePrompt == "" {
		log.Warn().Msg("OpenAI returned empty image prompt, using fallback")
		return FallbackImagePrompt(text), nil
	}
	return imagePrompt, nil
}

// GenerateImage renders one square standard-quality image from the prompt.
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	log.Debug().
		Str("prompt", preview(prompt, 50)).
		Msg("Generating image (OpenAI)")

	if c.client == nil {
		return nil, fmt.Errorf("openai image: %w", ErrNotConfigured)
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.modelImage,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai image: %w", ErrEmptyResult)
	}

	item := resp.Data[0]
	switch {
	case item.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai image: decode b64_json: %w", err)
		}
		return &Image{
			Data:       data,
			Resolution: openai.CreateImageSize1024x1024,
			Model:      c.modelImage,
			MimeType:   http.DetectContentType(data),
		}, nil
	case item.URL != "":
		return c.fetchImage(ctx, item.URL)
	default:
		return nil, fmt.Errorf("openai image: %w", ErrEmptyResult)
	}
}

// fetchImage downloads a URL-only result, keeping the server's content type.
func (c *OpenAIClient) fetchImage(ctx context.Context, imageURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("openai image: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai image: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai image: fetch: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedImageBytes))
	if err != nil {
		return nil, fmt.Errorf("openai image: fetch: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openai image: %w", ErrEmptyResult)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{
		Data:       data,
		Resolution: openai.CreateImageSize1024x1024,
		Model:      c.modelImage,
		MimeType:   mimeType,
	}, nil
}
