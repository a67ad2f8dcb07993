package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LLM selects and configures the model provider of the service.
type LLM struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	OllamaHost string
}

// LoadEnv reads a .env file from the working directory when one exists.
// Values already present in the environment win.
func LoadEnv() {
	godotenv.Load()
}

func LoadLLM() LLM {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "mistral"))

	apiKey := os.Getenv("MISTRAL_API_KEY")
	if provider == "openai" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return LLM{
		Provider:   provider,
		Model:      os.Getenv("LLM_MODEL"),
		BaseURL:    os.Getenv("LLM_BASE_URL"),
		APIKey:     apiKey,
		OllamaHost: getEnvOrDefault("OLLAMA_HOST", "localhost:11434"),
	}
}

// BenchmarksPath is the benchmark YAML override; empty means built in.
func BenchmarksPath() string {
	return os.Getenv("ROI_BENCHMARKS")
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}
