package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("roichat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseDefaults(t *testing.T) {
	require.NoError(t, Parse(newFlagSet(), []string{}))

	assert.False(t, Dev)
	assert.Equal(t, "http://localhost:8080", ServerURL)
	assert.Equal(t, ":8080", Addr)
	assert.Equal(t, ".", DownloadDir)
	assert.Equal(t, time.Duration(0), Timeout)
	assert.Equal(t, "info", LogLevel)
}

func TestParseFlags(t *testing.T) {
	err := Parse(newFlagSet(), []string{
		"-dev", "-server", "http://roi.internal:9000", "-no-server",
		"-downloads", "/tmp/reports", "-timeout", "30s",
	})
	require.NoError(t, err)

	assert.True(t, Dev)
	assert.True(t, NoServer)
	assert.Equal(t, "http://roi.internal:9000", ServerURL)
	assert.Equal(t, "/tmp/reports", DownloadDir)
	assert.Equal(t, 30*time.Second, Timeout)

	assert.Error(t, Parse(newFlagSet(), []string{"-timeout", "soon"}))
}

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "ROICHAT_TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "ROICHAT_TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.envValue)
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestLoadLLM(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("MISTRAL_API_KEY", "m-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("OLLAMA_HOST", "")

	llm := LoadLLM()
	assert.Equal(t, "mistral", llm.Provider)
	assert.Equal(t, "m-key", llm.APIKey)
	assert.Equal(t, "localhost:11434", llm.OllamaHost)

	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_MODEL", "gpt-4o")
	llm = LoadLLM()
	assert.Equal(t, "openai", llm.Provider)
	assert.Equal(t, "o-key", llm.APIKey)
	assert.Equal(t, "gpt-4o", llm.Model)

	t.Setenv("ROI_BENCHMARKS", "/etc/roichat/benchmarks.yaml")
	assert.Equal(t, "/etc/roichat/benchmarks.yaml", BenchmarksPath())
}
