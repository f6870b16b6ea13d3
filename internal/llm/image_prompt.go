package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

const (
	imagePromptMaxTokens   = 50
	imagePromptTemperature = 0.8
)

// creativeDirectorPrompt is the system message for thumbnail prompt derivation.
const creativeDirectorPrompt = "You are a creative director for Fireship-style content. " +
	"Generate a concise image prompt for DALL-E based on the given text. " +
	"Make it hyper-modern, meme-ified, sarcastic. " +
	"Make sure the prompt has text that is safe for work."

// imagePromptRequest is the user message paired with creativeDirectorPrompt.
func imagePromptRequest(text string) string {
	return fmt.Sprintf("Create a concise image prompt for a thumbnail based on this story: \"%s\"", strings.TrimSpace(text))
}

// FallbackImagePrompt is the fixed thumbnail prompt used when derivation is disabled or fails.
func FallbackImagePrompt(text string) string {
	return fmt.Sprintf("Create a professional news bulletin thumbnail image for: \"%s\". Style: hyper-modern, meme-ified, sarcastic, like fireship", strings.TrimSpace(text))
}

// GenerateImagePrompt derives a stylized thumbnail prompt from the story text with the flash model.
// Failures and empty answers fall back to FallbackImagePrompt; the error is never fatal.
func (c *Client) GenerateImagePrompt(ctx context.Context, text string) (string, error) {
	log.Debug().
		Int("text_length", len(text)).
		Msg("Generating image prompt")

	model := c.llmFlash
	if model == nil {
		return FallbackImagePrompt(text), nil
	}

	resp, err := model.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: creativeDirectorPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: imagePromptRequest(text)}},
		},
	},
		llms.WithTemperature(imagePromptTemperature),
		llms.WithMaxTokens(imagePromptMaxTokens),
	)
	if err != nil {
		log.Error().Err(err).Msg("Gemini image prompt generation failed, using fallback")
		return FallbackImagePrompt(text), nil
	}

	var raw string
	if len(resp.Choices) > 0 {
		raw = resp.Choices[0].Content
	}
	logGeminiResponse("GenerateImagePrompt", raw)

	imagePrompt := strings.TrimSpace(raw)
	if imagePrompt == "" {
		log.Warn().Msg("Gemini returned empty image prompt, using fallback")
		return FallbackImagePrompt(text), nil
	}

	log.Info().
		Int("prompt_length", len(imagePrompt)).
		Msg("Image prompt generation complete (Gemini)")
	return imagePrompt, nil
}
