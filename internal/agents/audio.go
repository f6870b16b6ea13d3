package agents

import (
	"context"

	"github.com/snappy-loop/bulletin/internal/llm"
)

type speechClient interface {
	GenerateSpeech(ctx context.Context, text string) (*llm.Audio, error)
}

// AudioAgentImpl wraps a provider client for TTS.
type AudioAgentImpl struct {
	Client speechClient
}

// NewAudioAgent returns an AudioAgent that delegates to the provider client.
func NewAudioAgent(client speechClient) AudioAgent {
	return &AudioAgentImpl{Client: client}
}

// GenerateSpeech delegates to the client's GenerateSpeech.
func (a *AudioAgentImpl) GenerateSpeech(ctx context.Context, text string) (*llm.Audio, error) {
	return a.Client.GenerateSpeech(ctx, text)
}
