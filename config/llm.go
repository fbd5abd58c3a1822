package config

import (
	"errors"
	"os"
	"strconv"
)

// LLMConfig carries the settings for the OpenAI-compatible completion and
// embedding endpoints.
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	TextModel     string
	VisionModel   string
	EmbedModel    string
	EmbedDims     int
	Temperature   float32
	AssistantName string
}

func LoadLLM() (LLMConfig, error) {
	cfg := LLMConfig{
		BaseURL:       os.Getenv("LLM_BASE_URL"),
		APIKey:        os.Getenv("LLM_API_KEY"),
		TextModel:     getenv("LLM_TEXT_MODEL", "qwen-turbo"),
		VisionModel:   getenv("LLM_VISION_MODEL", "qwen2.5-vl-32b-instruct"),
		EmbedModel:    getenv("LLM_EMBED_MODEL", "text-embedding-v3"),
		EmbedDims:     1024,
		Temperature:   0.7,
		AssistantName: getenv("ASSISTANT_NAME", "Companion"),
	}
	if cfg.APIKey == "" {
		return cfg, errors.New("LLM_API_KEY environment variable is not set")
	}

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return cfg, errors.New("LLM_TEMPERATURE must be a float")
		}
		cfg.Temperature = float32(f)
	}
	if v := os.Getenv("LLM_EMBED_DIMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, errors.New("LLM_EMBED_DIMS must be a positive integer")
		}
		cfg.EmbedDims = n
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
