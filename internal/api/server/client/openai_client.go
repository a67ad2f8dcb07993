package client

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/bz888/roichat/internal/logger"
)

// OpenAIConfig configures any OpenAI-compatible chat API.
type OpenAIConfig struct {
	Name    string
	APIKey  string
	KeyEnv  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

var (
	MistralDefaults = OpenAIConfig{
		Name:    "mistral",
		KeyEnv:  "MISTRAL_API_KEY",
		BaseURL: "https://api.mistral.ai/v1",
		Model:   "mistral-tiny",
		Timeout: 60 * time.Second,
	}
	OpenAIDefaults = OpenAIConfig{
		Name:    "openai",
		KeyEnv:  "OPENAI_API_KEY",
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
)

// OpenAIClient talks to Mistral, OpenAI or any other server speaking the
// OpenAI chat completions protocol.
type OpenAIClient struct {
	client openai.Client
	config OpenAIConfig
	log    *logger.Logger
}

// NewOpenAIClient creates a client. A missing API key is not an error here;
// calls fail with MissingKeyError so the service can still start.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(config.BaseURL, "/") + "/"),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: config,
		log:    logger.NewLogger(config.Name + " client"),
	}
}

func (c *OpenAIClient) Name() string {
	return c.config.Name
}

// GetModels lists the model ids the API exposes.
func (c *OpenAIClient) GetModels(ctx context.Context) ([]string, error) {
	if c.config.APIKey == "" {
		return nil, &MissingKeyError{EnvVar: c.config.KeyEnv}
	}

	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s models: %w", c.config.Name, err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	sort.Strings(models)
	return models, nil
}

// Chat sends a non-streaming completion request and returns the text.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.config.APIKey == "" {
		return "", &MissingKeyError{EnvVar: c.config.KeyEnv}
	}

	params, err := buildChatParams(c.config.Model, messages)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.log.Error("completion request failed: ", err)
		return "", fmt.Errorf("%s completion: %w", c.config.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion returned no choices", c.config.Name)
	}

	c.log.Info("completion from ", resp.Model, " used ", resp.Usage.TotalTokens, " tokens")
	return resp.Choices[0].Message.Content, nil
}

func buildChatParams(model string, messages []Message) (openai.ChatCompletionNewParams, error) {
	if strings.TrimSpace(model) == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("model is required")
	}
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("messages are required")
	}

	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		param, err := toChatMessageParam(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params = append(params, param)
	}

	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: params,
	}, nil
}

func toChatMessageParam(msg Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch strings.ToLower(strings.TrimSpace(msg.Role)) {
	case RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case RoleUser:
		return openai.UserMessage(msg.Content), nil
	case RoleAssistant:
		return openai.AssistantMessage(msg.Content), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", msg.Role)
	}
}

var _ Provider = (*OpenAIClient)(nil)
