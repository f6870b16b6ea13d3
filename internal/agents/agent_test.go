package agents

import (
	"testing"

	"github.com/snappy-loop/bulletin/internal/config"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{config.ProviderGemini, false},
		{config.ProviderOpenAI, false},
		{"anthropic", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := New(&config.Config{GenerationProvider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer p.Close()
			if p.Name != tt.provider || p.Audio == nil || p.Image == nil {
				t.Errorf("unexpected provider %+v", p)
			}
		})
	}
}
