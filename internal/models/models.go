package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerateRequest is the body of the single-part generation endpoints
type GenerateRequest struct {
	Text string `json:"text"`
}

// AudioResponse is returned by POST /api/generate-audio
type AudioResponse struct {
	AudioURL string `json:"audioUrl"` // data:audio/...;base64,...
	Message  string `json:"message"`
}

// ImageResponse is returned by POST /api/generate-image
type ImageResponse struct {
	ImageURL string `json:"imageUrl"` // data:image/...;base64,...
	Message  string `json:"message"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

// BulletinRequest asks for one narration track plus Images thumbnails.
// Images is optional; zero means the configured default.
type BulletinRequest struct {
	Text   string `json:"text"`
	Images int    `json:"images,omitempty"`
}

// Bulletin is a fully generated bulletin ready for the player
type Bulletin struct {
	ID         uuid.UUID `json:"id"`
	AudioURL   string    `json:"audioUrl"`
	ImageURLs  []string  `json:"imageUrls"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Duration returns the narration length.
func (b *Bulletin) Duration() time.Duration {
	return time.Duration(b.DurationMs) * time.Millisecond
}

// Bulletin part kinds reported in progress messages
const (
	PartAudio = "audio"
	PartImage = "image"
)

// Progress reports one finished part of a bulletin
type Progress struct {
	Part  string `json:"part"`            // audio, image
	Index int    `json:"index,omitempty"` // image index
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// WebSocket message types
const (
	WSTypeGenerate = "generate"
	WSTypeProgress = "progress"
	WSTypeBulletin = "bulletin"
	WSTypeError    = "error"
)

// WSInMessage is the JSON shape sent from the bulletin page over the socket
type WSInMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Images int    `json:"images,omitempty"`
}

// WSOutMessage is the JSON shape sent to the bulletin page over the socket
type WSOutMessage struct {
	Type     string    `json:"type"`
	Progress *Progress `json:"progress,omitempty"`
	Bulletin *Bulletin `json:"bulletin,omitempty"`
	Error    string    `json:"error,omitempty"`
}
