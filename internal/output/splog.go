// Package output provides console and file logging plus terminal styling for binnacle-store.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"
)

// consoleHandler writes bare messages, without timestamps or level prefixes
type consoleHandler struct {
	writer    io.Writer
	debugMode bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		return h.debugMode
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	_, err := fmt.Fprintln(h.writer, record.Message)
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *consoleHandler) WithGroup(_ string) slog.Handler {
	return h
}

// multiHandler fans out log records to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// createLumberjackLogger creates a lumberjack logger with configuration from environment variables
func createLumberjackLogger(logFilePath string) *lumberjack.Logger {
	config := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    1,  // megabytes
		MaxBackups: 2,
		MaxAge:     30, // days
		Compress:   false,
	}

	if maxSizeStr := os.Getenv("BINNACLE_LOG_MAX_SIZE"); maxSizeStr != "" {
		if maxSize, err := strconv.Atoi(maxSizeStr); err == nil && maxSize > 0 {
			config.MaxSize = maxSize
		}
	}

	if maxBackupsStr := os.Getenv("BINNACLE_LOG_MAX_BACKUPS"); maxBackupsStr != "" {
		if maxBackups, err := strconv.Atoi(maxBackupsStr); err == nil && maxBackups >= 0 {
			config.MaxBackups = maxBackups
		}
	}

	if maxAgeStr := os.Getenv("BINNACLE_LOG_MAX_AGE"); maxAgeStr != "" {
		if maxAge, err := strconv.Atoi(maxAgeStr); err == nil && maxAge > 0 {
			config.MaxAge = maxAge
		}
	}

	return config
}

// Config controls where a Splog writes
type Config struct {
	// Out receives command output (Print, Page). Defaults to os.Stdout.
	Out io.Writer
	// Err receives log messages. Defaults to os.Stderr.
	Err io.Writer
	// Debug enables debug messages on the console. DEBUG in the environment also enables them.
	Debug bool
	// LogFilePath enables a rotated log file that records every level.
	LogFilePath string
}

// Splog provides structured logging and output
type Splog struct {
	logger    *slog.Logger
	out       io.Writer
	logWriter io.WriteCloser
}

// NewSplog creates a console-only splog writing to stdout and stderr
func NewSplog() *Splog {
	splog, _ := NewSplogWithConfig(Config{})
	return splog
}

// NewSplogWithConfig creates a splog with optional file logging
func NewSplogWithConfig(cfg Config) (*Splog, error) {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Err == nil {
		cfg.Err = os.Stderr
	}
	splog := &Splog{out: cfg.Out}

	handlers := []slog.Handler{&consoleHandler{
		writer:    cfg.Err,
		debugMode: cfg.Debug || os.Getenv("DEBUG") != "",
	}}

	if cfg.LogFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		lumberjackLogger := createLumberjackLogger(cfg.LogFilePath)
		splog.logWriter = lumberjackLogger

		fileHandler := slog.NewTextHandler(lumberjackLogger, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05.000"))}
				}
				return a
			},
		})
		handlers = append(handlers, fileHandler)
	}

	splog.logger = slog.New(&multiHandler{handlers: handlers})
	return splog, nil
}

// Slog returns the underlying logger so libraries can log through the same sinks.
func (s *Splog) Slog() *slog.Logger {
	return s.logger
}

func (s *Splog) logMessage(level slog.Level, format string, args []any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.logger.Log(context.Background(), level, msg)
}

// Info writes an info message
func (s *Splog) Info(format string, args ...any) {
	s.logMessage(slog.LevelInfo, format, args)
}

// Warn writes a warning message
func (s *Splog) Warn(format string, args ...any) {
	s.logMessage(slog.LevelWarn, "warning: "+format, args)
}

// Error writes an error message
func (s *Splog) Error(format string, args ...any) {
	s.logMessage(slog.LevelError, "error: "+format, args)
}

// Debug writes a debug message
func (s *Splog) Debug(format string, args ...any) {
	s.logMessage(slog.LevelDebug, format, args)
}

// Print writes command output followed by a newline
func (s *Splog) Print(format string, args ...any) {
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	_, _ = fmt.Fprintln(s.out, format)
}

// Page writes command output verbatim
func (s *Splog) Page(content string) {
	_, _ = fmt.Fprint(s.out, content)
}

// Out returns the writer command output goes to
func (s *Splog) Out() io.Writer {
	return s.out
}

// Close closes the log file if one was opened
func (s *Splog) Close() error {
	if s.logWriter != nil {
		return s.logWriter.Close()
	}
	return nil
}
