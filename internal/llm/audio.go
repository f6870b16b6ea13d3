package llm

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	unifiedgenai "google.golang.org/genai"
)

// defaultPCMMimeType is what Gemini TTS streams when a part carries no MIME type.
const defaultPCMMimeType = "audio/L16;codec=pcm;rate=24000"

// newsReaderToneHint steers the prebuilt voice towards a news-anchor delivery.
const newsReaderToneHint = "upbeat news anchor, crisp and fast-paced"

// GenerateSpeech synthesizes text with Gemini TTS (response_modalities: ["audio"]).
// The result is raw PCM as streamed by the API; callers assemble it into a container.
func (c *Client) GenerateSpeech(ctx context.Context, text string) (*Audio, error) {
	log.Debug().
		Int("text_length", len(text)).
		Msg("Generating speech")

	if c.unifiedClient == nil {
		return nil, fmt.Errorf("gemini tts: %w", ErrNotConfigured)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini tts: empty text")
	}

	contents := []*unifiedgenai.Content{
		{
			Role: "user",
			Parts: []*unifiedgenai.Part{
				unifiedgenai.NewPartFromText("[tone: " + newsReaderToneHint + "] " + text),
			},
		},
	}

	temp := float32(1.0)
	config := &unifiedgenai.GenerateContentConfig{
		Temperature:        &temp,
		ResponseModalities: []string{"audio"},
		SpeechConfig: &unifiedgenai.SpeechConfig{
			VoiceConfig: &unifiedgenai.VoiceConfig{
				PrebuiltVoiceConfig: &unifiedgenai.PrebuiltVoiceConfig{
					VoiceName: c.ttsVoice,
				},
			},
		},
	}

	log.Debug().
		Str("model", c.modelTTS).
		Str("voice", c.ttsVoice).
		Msg("Calling unified genai TTS GenerateContentStream")

	// Collect audio data from streaming response
	var audioBuffer bytes.Buffer
	var lastMimeType string

	for resp, err := range c.unifiedClient.Models.GenerateContentStream(ctx, c.modelTTS, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("TTS stream error: %w", err)
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		cand := resp.Candidates[0]
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				audioBuffer.Write(part.InlineData.Data)
				if part.InlineData.MIMEType != "" {
					lastMimeType = part.InlineData.MIMEType
				}
			}
		}
	}

	if audioBuffer.Len() == 0 {
		return nil, fmt.Errorf("gemini tts: %w", ErrEmptyResult)
	}
	if lastMimeType == "" {
		lastMimeType = defaultPCMMimeType
	}

	log.Info().
		Str("caller", "GenerateSpeech").
		Int("audio_size_bytes", audioBuffer.Len()).
		Str("voice", c.ttsVoice).
		Str("mime_type", lastMimeType).
		Msg("TTS audio generated")

	return &Audio{
		Data:     audioBuffer.Bytes(),
		Model:    c.modelTTS,
		MimeType: lastMimeType,
	}, nil
}
