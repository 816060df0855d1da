package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
	file   *os.File
)

// ParseLevel maps a level name to a slog level. Unknown names are INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a JSON logger writing to w as the global logger.
func Setup(level string, w io.Writer) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger = slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Init opens the log destination for a run. In dev mode everything goes to
// stderr at DEBUG; otherwise logs are appended to log.txt in userDir, since the
// terminal UI owns stdout.
func Init(devMode bool, level, userDir string) error {
	if devMode {
		Setup("DEBUG", os.Stderr)
		return nil
	}

	path := filepath.Join(userDir, "log.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	Setup(level, f)
	mu.Lock()
	file = f
	mu.Unlock()
	return nil
}

// Destroy closes the log file opened by Init, if any, and falls back to stderr.
func Destroy() error {
	mu.Lock()
	f := file
	file = nil
	mu.Unlock()

	if f == nil {
		return nil
	}
	Setup("INFO", os.Stderr)
	return f.Close()
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return Setup("INFO", os.Stderr)
	}
	return l
}

// WithComponent returns a logger tagged with a component name. It follows
// later Setup and Init calls, so it is safe to take before logging is up.
func WithComponent(name string) *slog.Logger {
	return Current().With(slog.String("component", name))
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}
