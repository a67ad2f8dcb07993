package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bz888/roichat/internal/agent"
	"github.com/bz888/roichat/internal/api/server/client"
	"github.com/bz888/roichat/internal/api/server/handlers"
	"github.com/bz888/roichat/internal/config"
	"github.com/bz888/roichat/internal/logger"
	"github.com/bz888/roichat/internal/roi"
)

const (
	llmTimeout      = 120 * time.Second
	pingTimeout     = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Addr           string
	LLM            config.LLM
	BenchmarksPath string
}

type Server struct {
	addr    string
	handler http.Handler
	log     *logger.Logger
}

func New(ctx context.Context, opts Options) (*Server, error) {
	log := logger.NewLogger("Server")

	benchmarks, err := roi.LoadBenchmarks(opts.BenchmarksPath)
	if err != nil {
		return nil, err
	}
	engine, err := roi.NewEngine(benchmarks)
	if err != nil {
		return nil, err
	}

	providers, err := initializeClients(ctx, opts.LLM, log)
	if err != nil {
		return nil, err
	}

	handler := handlers.NewHandler(agent.New(providers[0], engine), engine, providers...)
	return &Server{
		addr:    opts.Addr,
		handler: registerRoutes(handler),
		log:     log,
	}, nil
}

// Handler exposes the routed service, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Server started on http://" + ln.Addr().String() + "/")
		errChan <- srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// initializeClients builds the configured chat provider first. A reachable
// local Ollama is added after it so its models are listed too.
func initializeClients(ctx context.Context, llm config.LLM, log *logger.Logger) ([]client.Provider, error) {
	var primary client.Provider
	switch llm.Provider {
	case "mistral", "openai":
		cfg := client.MistralDefaults
		if llm.Provider == "openai" {
			cfg = client.OpenAIDefaults
		}
		cfg.APIKey = llm.APIKey
		cfg.Timeout = llmTimeout
		if llm.BaseURL != "" {
			cfg.BaseURL = llm.BaseURL
		}
		if llm.Model != "" {
			cfg.Model = llm.Model
		}
		if cfg.APIKey == "" {
			log.Warn(cfg.KeyEnv, " not provided, chat replies will ask for it")
		}
		primary = client.NewOpenAIClient(cfg)
	case "ollama":
		ollama := client.NewOllamaClient(llm.OllamaHost, llm.Model, llmTimeout)
		if !ping(ctx, ollama) {
			log.Warn("Ollama is not reachable at ", llm.OllamaHost)
		}
		primary = ollama
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", llm.Provider)
	}
	log.Info(primary.Name(), " client initialized.")

	providers := []client.Provider{primary}
	if llm.Provider != "ollama" {
		ollama := client.NewOllamaClient(llm.OllamaHost, "", llmTimeout)
		if ping(ctx, ollama) {
			log.Info("Ollama client initialized.")
			providers = append(providers, ollama)
		}
	}
	return providers, nil
}

func ping(ctx context.Context, c *client.OllamaClient) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.Available(ctx)
}
