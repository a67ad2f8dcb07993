package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bz888/roichat/internal/logger"
)

// OllamaClient represents a client for the Ollama API
type OllamaClient struct {
	Client
	model string
	log   *logger.Logger
}

var ollamaConfig = ClientConfig{
	Scheme:     "http",
	Host:       "localhost:11434",
	ModelsPath: "/api/tags",
	ChatPath:   "/api/chat",
}

const OllamaDefaultModel = "llama3:latest"

// NewOllamaClient creates a new Ollama API client. host is host:port, with or
// without an http:// prefix; empty uses the local default.
func NewOllamaClient(host, model string, timeout time.Duration) *OllamaClient {
	config := ollamaConfig
	if host != "" {
		config.Host = strings.TrimSuffix(strings.TrimPrefix(host, "http://"), "/")
	}
	if model == "" {
		model = OllamaDefaultModel
	}
	return &OllamaClient{
		Client: *NewClient(config, &http.Client{Timeout: timeout}),
		model:  model,
		log:    logger.NewLogger("ollama client"),
	}
}

type OllamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type OllamaChatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
	EvalCount int     `json:"eval_count"`
}

type ModelsResponse struct {
	Models []OllamaModel `json:"models"`
}

type OllamaModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

type Families []string

// ModelDetails Details represents the details of a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          Families `json:"families"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

func (c *OllamaClient) Name() string {
	return "ollama"
}

// Available reports whether the Ollama server answers on its base URL.
func (c *OllamaClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Ollama server not available: ", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *OllamaClient) GetModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("failed to fetch data: " + resp.Status)
	}

	var response ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	names := make([]string, len(response.Models))
	for i, model := range response.Models {
		names[i] = model.Name
	}
	return names, nil
}

// Chat sends the conversation with streaming disabled and returns the reply.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	bts, err := json.Marshal(OllamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GetChatURL(), bytes.NewReader(bts))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		c.log.Error("Failed to request on ollama chat: ", err)
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 2048))
		return "", fmt.Errorf("ollama chat failed (%d): %s", response.StatusCode, bytes.TrimSpace(body))
	}

	var chatResp OllamaChatResponse
	if err := json.NewDecoder(response.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode ollama reply: %w", err)
	}
	c.log.Info("Completed response from ", chatResp.Model, " (", chatResp.EvalCount, " tokens)")
	return chatResp.Message.Content, nil
}

// UnmarshalJSON handles the custom unmarshalling for Families.
func (f *Families) UnmarshalJSON(data []byte) error {
	// If the JSON data is "null", return an empty Families slice.
	if string(data) == "null" {
		*f = Families{}
		return nil
	}

	var families []string
	if err := json.Unmarshal(data, &families); err != nil {
		return err
	}
	*f = Families(families)
	return nil
}

var _ Provider = (*OllamaClient)(nil)
