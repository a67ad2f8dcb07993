package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/bz888/roichat/internal/api"
	"github.com/bz888/roichat/internal/api/server"
	"github.com/bz888/roichat/internal/chat"
	"github.com/bz888/roichat/internal/config"
	"github.com/bz888/roichat/internal/logger"
	"github.com/bz888/roichat/internal/ui"
)

func init() {
	config.Init()
}

func Execute() {
	config.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.ServeOnly {
		if err := logger.InitLogger(config.Dev, config.LogPath, config.LogLevel, nil); err != nil {
			exit(err)
		}
		defer logger.NewLogger("main").Close()
		if err := serve(ctx); err != nil {
			exit(err)
		}
		return
	}

	view := ui.New(config.Dev)
	if err := logger.InitLogger(config.Dev, config.LogPath, config.LogLevel, view.DebugConsole()); err != nil {
		exit(err)
	}
	localLogger := logger.NewLogger("main")
	defer localLogger.Close()

	if !config.NoServer {
		go func() {
			if err := serve(ctx); err != nil {
				localLogger.Error("service stopped: ", err)
			}
		}()
	}

	sessionID := uuid.NewString()
	client, err := api.NewClient(config.ServerURL, config.Timeout, sessionID)
	if err != nil {
		exit(err)
	}
	session := chat.NewSession(client, view, chat.NewFileSaver(config.DownloadDir))
	view.Attach(session, client)

	localLogger.Info("session ", sessionID, " talking to ", config.ServerURL)
	if err := view.Run(ctx); err != nil {
		exit(err)
	}
	stop()
	view.Wait()
}

func serve(ctx context.Context) error {
	srv, err := server.New(ctx, server.Options{
		Addr:           config.Addr,
		LLM:            config.LoadLLM(),
		BenchmarksPath: config.BenchmarksPath(),
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "roichat:", err)
	os.Exit(1)
}
