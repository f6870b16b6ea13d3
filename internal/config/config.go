package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Generation providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr   string
	LogLevel   string
	StaticDir  string
	MCPEnabled bool
	MCPToken   string // bearer token for /mcp; empty disables auth

	// Generation provider: "gemini" or "openai"
	GenerationProvider string
	GenerationTimeout  time.Duration

	// Gemini API
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL
	GeminiModelFlash  string // prompt derivation
	GeminiModelImage  string // image generation, e.g. gemini-2.5-flash-image
	GeminiModelTTS    string // TTS model, e.g. gemini-2.5-flash-preview-tts
	GeminiTTSVoice    string // TTS voice name, e.g. Zephyr, Puck, Aoede

	// OpenAI API
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModelTTS   string
	OpenAITTSVoice   string
	OpenAIModelImage string
	OpenAIModelChat  string

	// Bulletin
	IntroPhrase        string
	IntroAudioPath     string // local intro asset, takes precedence over S3
	IntroAudioS3Key    string
	StylizeImagePrompt bool
	MaxInputLength     int
	MaxImagesCount     int
	DefaultImagesCount int

	// S3/Storage (intro asset only)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3PublicURL string
}

// Load loads configuration from environment variables
func Load() *Config {
	maxImages := clampMin(getEnvInt("MAX_IMAGES_COUNT", 4), 1)
	return &Config{
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		StaticDir:  getEnv("STATIC_DIR", "web/static"),
		MCPEnabled: getEnvBool("MCP_ENABLED", true),
		MCPToken:   getEnv("MCP_TOKEN", ""),

		GenerationProvider: strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderGemini)),
		GenerationTimeout:  getEnvDuration("GENERATION_TIMEOUT", 120*time.Second),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelFlash:  getEnv("GEMINI_MODEL_FLASH", "gemini-2.5-flash-lite"),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "gemini-2.5-flash-image"),
		GeminiModelTTS:    getEnv("GEMINI_MODEL_TTS", "gemini-2.5-flash-preview-tts"),
		GeminiTTSVoice:    getEnv("GEMINI_TTS_VOICE", "Puck"),

		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIModelTTS:   getEnv("OPENAI_MODEL_TTS", "tts-1"),
		OpenAITTSVoice:   getEnv("OPENAI_TTS_VOICE", "alloy"),
		OpenAIModelImage: getEnv("OPENAI_MODEL_IMAGE", "dall-e-3"),
		OpenAIModelChat:  getEnv("OPENAI_MODEL_CHAT", "gpt-4"),

		IntroPhrase:        getEnv("INTRO_PHRASE", "Welcome to your one minute bulletin."),
		IntroAudioPath:     getEnv("INTRO_AUDIO_PATH", "web/static/intro.mp3"),
		IntroAudioS3Key:    getEnv("INTRO_AUDIO_S3_KEY", ""),
		StylizeImagePrompt: getEnvBool("STYLIZE_IMAGE_PROMPT", true),
		MaxInputLength:     clampMin(getEnvInt("MAX_INPUT_LENGTH", 5000), 1),
		MaxImagesCount:     maxImages,
		DefaultImagesCount: clampRange(getEnvInt("DEFAULT_IMAGES_COUNT", 4), 1, maxImages),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "bulletin-assets"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func clampRange(v, min, max int) int {
	if v > max {
		return max
	}
	return clampMin(v, min)
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
