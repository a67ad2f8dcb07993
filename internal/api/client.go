package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bz888/roichat/internal/chat"
	"github.com/bz888/roichat/internal/logger"
)

const (
	chatPath   = "/chat"
	modelsPath = "/models"

	// SessionHeader identifies the client session in server logs.
	SessionHeader = "X-Session-ID"
)

// ErrMalformedReply means the server answered 2xx without a usable reply.
var ErrMalformedReply = errors.New("malformed chat reply")

// Client talks to the chat service over HTTP.
type Client struct {
	base      *url.URL
	http      *http.Client
	sessionID string
	log       *logger.Logger
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// chatResponse mirrors the wire shape so a missing reply can be told apart
// from an empty one.
type chatResponse struct {
	Reply     *string `json:"reply"`
	PDFBase64 *string `json:"pdf_base64"`
	Filename  *string `json:"filename"`
}

// NewClient builds a client for the service at baseURL. A zero timeout means
// requests wait for as long as the context allows.
func NewClient(baseURL string, timeout time.Duration, sessionID string) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("server url %q must include scheme and host", baseURL)
	}
	return &Client{
		base:      base,
		http:      &http.Client{Timeout: timeout},
		sessionID: sessionID,
		log:       logger.NewLogger("api client"),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// EncodeChatRequest renders the request body for a transcript.
func EncodeChatRequest(messages []chat.Message) ([]byte, error) {
	if messages == nil {
		messages = []chat.Message{}
	}
	return json.Marshal(chatRequest{Messages: messages})
}

// Send posts the transcript to the chat endpoint and waits for the full reply.
func (c *Client) Send(ctx context.Context, messages []chat.Message) (chat.Reply, error) {
	requestData, err := EncodeChatRequest(messages)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("serialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(chatPath), bytes.NewReader(requestData))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}

	c.log.Info("posting ", len(messages), " messages to ", req.URL.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.Reply{}, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error("failed to close response body: ", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return chat.Reply{}, fmt.Errorf("chat request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wire chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return chat.Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	if wire.Reply == nil {
		return chat.Reply{}, ErrMalformedReply
	}

	return chat.Reply{
		Reply:     *wire.Reply,
		PDFBase64: wire.PDFBase64,
		Filename:  wire.Filename,
	}, nil
}

// ListModels returns the model names the service can chat with.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(modelsPath), nil)
	if err != nil {
		return nil, fmt.Errorf("create models request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform models request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get models: %s", resp.Status)
	}

	var models []string
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	return models, nil
}

var _ chat.Transport = (*Client)(nil)
