package agents

import (
	"context"
	"fmt"

	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/llm"
)

// AudioAgent synthesizes bulletin speech.
type AudioAgent interface {
	GenerateSpeech(ctx context.Context, text string) (*llm.Audio, error)
}

// ImageAgent derives thumbnail prompts and renders images.
type ImageAgent interface {
	GenerateImagePrompt(ctx context.Context, text string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*llm.Image, error)
}

// Provider bundles the agents of one generation backend.
type Provider struct {
	Name  string
	Audio AudioAgent
	Image ImageAgent
	close func() error
}

// Close releases provider clients.
func (p *Provider) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// New builds the agents for cfg.GenerationProvider.
func New(cfg *config.Config) (*Provider, error) {
	switch cfg.GenerationProvider {
	case config.ProviderGemini:
		client := llm.NewClient(
			cfg.GeminiAPIKey, cfg.GeminiModelFlash, cfg.GeminiModelImage,
			cfg.GeminiModelTTS, cfg.GeminiTTSVoice, cfg.GeminiAPIEndpoint,
		)
		return &Provider{
			Name:  config.ProviderGemini,
			Audio: NewAudioAgent(client),
			Image: NewImageAgent(client),
			close: client.Close,
		}, nil
	case config.ProviderOpenAI:
		client := llm.NewOpenAIClient(
			cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModelTTS, cfg.OpenAITTSVoice,
			cfg.OpenAIModelImage, cfg.OpenAIModelChat, nil,
		)
		return &Provider{
			Name:  config.ProviderOpenAI,
			Audio: NewAudioAgent(client),
			Image: NewImageAgent(client),
		}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.GenerationProvider)
	}
}
