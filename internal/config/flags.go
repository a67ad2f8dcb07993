package config

import (
	"flag"
	"os"
	"time"
)

var (
	Dev         bool
	LogPath     string
	LogLevel    string
	ServerURL   string
	Addr        string
	ServeOnly   bool
	NoServer    bool
	DownloadDir string
	Timeout     time.Duration
)

func Init() {
	// CommandLine exits on bad flags
	_ = Parse(flag.CommandLine, os.Args[1:])
}

// Parse registers the flags on fs and parses args.
func Parse(fs *flag.FlagSet, args []string) error {
	fs.BoolVar(&Dev, "dev", false, "Development mode")
	fs.StringVar(&LogPath, "logPath", "", "Path to save the log file")
	fs.StringVar(&LogLevel, "logLevel", "info", "Minimum level written to the log file")
	fs.StringVar(&ServerURL, "server", "http://localhost:8080", "Base URL of the chat endpoint")
	fs.StringVar(&Addr, "addr", ":8080", "Listen address of the embedded service")
	fs.BoolVar(&ServeOnly, "serve", false, "Run the HTTP service without the terminal UI")
	fs.BoolVar(&NoServer, "no-server", false, "Run the terminal UI against a remote service")
	fs.StringVar(&DownloadDir, "downloads", ".", "Directory for downloaded reports")
	fs.DurationVar(&Timeout, "timeout", 0, "Chat request timeout, 0 waits indefinitely")

	return fs.Parse(args)
}
