package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/player"
)

// indexData is the template data of the bulletin page.
type indexData struct {
	MaxInputLength int
	DefaultImages  int
	ImageChoices   []int
	CanvasWidth    int
	CanvasHeight   int
}

// Index serves the bulletin page at GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	choices := make([]int, h.config.MaxImagesCount)
	for i := range choices {
		choices[i] = i + 1
	}
	data := indexData{
		MaxInputLength: h.config.MaxInputLength,
		DefaultImages:  h.config.DefaultImagesCount,
		ImageChoices:   choices,
		CanvasWidth:    player.CanvasWidth,
		CanvasHeight:   player.CanvasHeight,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := executeTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("Failed to render index page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// About serves GET /about.
func (h *Handler) About(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(aboutBytes)
}
