package agents

import (
	"context"

	"github.com/snappy-loop/bulletin/internal/llm"
)

type imageClient interface {
	GenerateImagePrompt(ctx context.Context, text string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*llm.Image, error)
}

// ImageAgentImpl wraps a provider client for image prompt and image generation.
type ImageAgentImpl struct {
	Client imageClient
}

// NewImageAgent returns an ImageAgent that delegates to the provider client.
func NewImageAgent(client imageClient) ImageAgent {
	return &ImageAgentImpl{Client: client}
}

// GenerateImagePrompt delegates to the client's GenerateImagePrompt.
func (a *ImageAgentImpl) GenerateImagePrompt(ctx context.Context, text string) (string, error) {
	return a.Client.GenerateImagePrompt(ctx, text)
}

// GenerateImage delegates to the client's GenerateImage.
func (a *ImageAgentImpl) GenerateImage(ctx context.Context, prompt string) (*llm.Image, error) {
	return a.Client.GenerateImage(ctx, prompt)
}
