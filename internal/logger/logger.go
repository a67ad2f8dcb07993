package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rivo/tview"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Types int

const (
	Debug Types = iota
	Info
	Warn
	Error
	Fatal
)

const (
	logFileName   = "roichat.log"
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

type Message struct {
	Timestamp time.Time
	Tag       string
	Message   string
	LogTypes  Types
}

// manager owns the shared sinks. Every tagged Logger points at the same one.
type manager struct {
	view    *tview.TextView
	dev     bool
	level   Types
	sink    *slog.Logger
	file    io.Closer
	logChan chan Message
	done    chan struct{}
	close   sync.Once
}

type Logger struct {
	tag string
	m   *manager
}

var (
	logManager *manager
	once       sync.Once
)

// InitLogger wires the process-wide sinks. logPath is a directory; when empty
// nothing is written to disk. view, when set, receives dev-mode output.
func InitLogger(dev bool, logPath string, level string, view *tview.TextView) error {
	var initErr error
	once.Do(func() {
		m := &manager{
			view:    view,
			dev:     dev,
			level:   ParseLevel(level),
			logChan: make(chan Message, 100),
			done:    make(chan struct{}),
		}
		if logPath != "" {
			if err := os.MkdirAll(logPath, 0700); err != nil {
				initErr = fmt.Errorf("create log directory: %w", err)
			} else {
				writer := &lumberjack.Logger{
					Filename:   filepath.Join(logPath, logFileName),
					MaxSize:    maxLogSizeMB,
					MaxBackups: maxLogBackups,
					MaxAge:     maxLogAgeDays,
					Compress:   true,
				}
				m.file = writer
				m.sink = slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: slog.LevelDebug}))
			}
		}
		logManager = m
		go m.processLogs()
	})
	return initErr
}

// NewLogger returns a logger tagged with the component name. It is a no-op
// until InitLogger has run.
func NewLogger(tag string) *Logger {
	return &Logger{tag: tag, m: logManager}
}

// ParseLevel maps a level name to a Types value, defaulting to Info.
func ParseLevel(level string) Types {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return Debug
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (m *manager) processLogs() {
	defer close(m.done)
	for msg := range m.logChan {
		if m.sink == nil {
			continue
		}
		m.sink.LogAttrs(context.Background(), msg.LogTypes.slogLevel(), msg.Message,
			slog.String("tag", msg.Tag),
			slog.Time("at", msg.Timestamp),
		)
	}
}

func (l *Logger) log(logTypes Types, v ...interface{}) {
	m := l.m
	if m == nil {
		if logTypes == Fatal {
			log.Println(v...)
		}
		return
	}
	if logTypes < m.level && !m.dev {
		return
	}

	message := fmt.Sprint(v...)
	if m.dev {
		if m.view != nil {
			var format string
			switch logTypes {
			case Debug:
				format = "[grey]DEBUG (%s): %s[-]\n"
			case Info:
				format = "[green]DEBUG (%s): %s[-]\n"
			case Warn:
				format = "[yellow]DEBUG (%s): %s[-]\n"
			default:
				format = "[red]DEBUG (%s): %s[-]\n"
			}
			fmt.Fprintf(m.view, format, l.tag, tview.Escape(message))
		} else {
			log.Printf("[%s] %s: %s", l.tag, logTypes.toString(), message)
		}
	}

	if m.sink != nil && logTypes >= m.level {
		defer func() {
			// channel closed by Close; late messages are dropped
			_ = recover()
		}()
		m.logChan <- Message{
			Timestamp: time.Now(),
			Tag:       l.tag,
			Message:   message,
			LogTypes:  logTypes,
		}
	}
}

func (l *Logger) Debug(v ...interface{}) {
	l.log(Debug, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.log(Info, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.log(Error, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.log(Warn, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.log(Info, fmt.Sprintf(format, v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.log(Warn, fmt.Sprintf(format, v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.log(Error, fmt.Sprintf(format, v...))
}

// Write logs p at Info level so a Logger can back a standard log.Logger.
func (l *Logger) Write(p []byte) (int, error) {
	l.log(Info, strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (l *Logger) Fatal(v ...interface{}) {
	l.log(Fatal, v...)
	l.Close()
	os.Exit(1)
}

// Close flushes pending records and closes the log file. Safe to call more
// than once and from any tagged logger.
func (l *Logger) Close() {
	m := l.m
	if m == nil {
		return
	}
	m.close.Do(func() {
		close(m.logChan)
		<-m.done
		if m.file != nil {
			m.file.Close()
		}
	})
}

func (t Types) slogLevel() slog.Level {
	switch t {
	case Debug:
		return slog.LevelDebug
	case Warn:
		return slog.LevelWarn
	case Error, Fatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (t Types) toString() string {
	switch t {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Error:
		return "ERROR"
	case Warn:
		return "WARN"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
