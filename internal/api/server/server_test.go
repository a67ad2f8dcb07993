package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bz888/roichat/internal/config"
)

func fakeOllama(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			w.Write([]byte(`{"model":"llama3:latest","message":{"role":"assistant","content":"Which industry are you in?"},"done":true}`))
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3:latest"}]}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func newTestServer(t *testing.T, llm config.LLM) http.Handler {
	t.Helper()
	s, err := New(context.Background(), Options{Addr: "127.0.0.1:0", LLM: llm})
	require.NoError(t, err)
	return s.Handler()
}

func TestRoutesWithOllama(t *testing.T) {
	h := newTestServer(t, config.LLM{Provider: "ollama", OllamaHost: fakeOllama(t)})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("X-Request-ID", "abc")
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"reply":"Which industry are you in?","metrics":null,"pdf_base64":null,"filename":null}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["llama3:latest"]`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/roi/report", strings.NewReader(`{"company_name":"Acme"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestChatWithoutKey(t *testing.T) {
	h := newTestServer(t, config.LLM{Provider: "mistral", OllamaHost: "127.0.0.1:1"})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "MISTRAL_API_KEY is not set. Please add it to a .env file or your environment.", body["reply"])
	assert.Nil(t, body["pdf_base64"])
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(context.Background(), Options{LLM: config.LLM{Provider: "gemini"}})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{LLM: config.LLM{Provider: "ollama"}, BenchmarksPath: "/missing.yaml"})
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	s, err := New(context.Background(), Options{LLM: config.LLM{Provider: "ollama", OllamaHost: fakeOllama(t)}})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
