package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/bulletin/internal/config"
	"github.com/snappy-loop/bulletin/internal/models"
	"github.com/snappy-loop/bulletin/internal/services"
)

// Error bodies returned to the bulletin page.
const (
	msgTextRequired        = "Text is required"
	msgAudioFailed         = "Failed to generate audio"
	msgImageFailed         = "Failed to generate image"
	msgBulletinFailed      = "Failed to generate bulletin"
	msgInvalidRequestBody  = "invalid request body"
	maxRequestBodyOverhead = 4 << 10
)

// bulletinService is the subset of services.BulletinService used by Handler.
type bulletinService interface {
	GenerateAudio(ctx context.Context, text string) (*services.GeneratedAudio, error)
	GenerateImage(ctx context.Context, text string) (string, error)
	GenerateBulletin(ctx context.Context, req *models.BulletinRequest, progress func(models.Progress)) (*models.Bulletin, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	bulletins bulletinService
	config    *config.Config
}

// NewHandler creates a new handler
func NewHandler(bulletins bulletinService, cfg *config.Config) *Handler {
	return &Handler{
		bulletins: bulletins,
		config:    cfg,
	}
}

// Routes registers pages and API endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/about", h.About).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/generate-audio", h.GenerateAudio).Methods("POST")
	api.HandleFunc("/generate-image", h.GenerateImage).Methods("POST")
	api.HandleFunc("/bulletins", h.CreateBulletin).Methods("POST")
	api.HandleFunc("/bulletins/ws", h.BulletinsWS).Methods("GET")
}

func (h *Handler) maxBodyBytes() int64 {
	return int64(h.config.MaxInputLength)*4 + maxRequestBodyOverhead
}

// decodeBody reads a JSON body into v, bounded by the input length limit.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return false
	}
	return true
}

// validationMessage maps service validation errors to response bodies.
func validationMessage(err error) string {
	if errors.Is(err, services.ErrTextRequired) {
		return msgTextRequired
	}
	return err.Error()
}

// GenerateAudio handles POST /api/generate-audio
func (h *Handler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	audio, err := h.bulletins.GenerateAudio(r.Context(), req.Text)
	if err != nil {
		if services.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		log.Error().Err(err).Msg("Error generating audio")
		writeJSONError(w, http.StatusInternalServerError, msgAudioFailed)
		return
	}

	writeJSON(w, http.StatusOK, models.AudioResponse{
		AudioURL: audio.URL,
		Message:  "Audio generated successfully",
	})
}

// GenerateImage handles POST /api/generate-image
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	imageURL, err := h.bulletins.GenerateImage(r.Context(), req.Text)
	if err != nil {
		if services.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		log.Error().Err(err).Msg("Error generating image")
		writeJSONError(w, http.StatusInternalServerError, msgImageFailed)
		return
	}

	writeJSON(w, http.StatusOK, models.ImageResponse{
		ImageURL: imageURL,
		Message:  "Image generated successfully",
	})
}

// CreateBulletin handles POST /api/bulletins
func (h *Handler) CreateBulletin(w http.ResponseWriter, r *http.Request) {
	var req models.BulletinRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	bulletin, err := h.bulletins.GenerateBulletin(r.Context(), &req, nil)
	if err != nil {
		if services.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, validationMessage(err))
			return
		}
		log.Error().Err(err).Msg("Error generating bulletin")
		writeJSONError(w, http.StatusInternalServerError, msgBulletinFailed)
		return
	}

	writeJSON(w, http.StatusOK, bulletin)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}
