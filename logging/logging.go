// Package logging is the process-wide leveled logger. It wraps log/slog with a
// dynamic level and an optional log file that receives a copy of every record.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	logger   *slog.Logger
	leveler  = &slog.LevelVar{}
	output   io.Writer = os.Stderr
	logFile  *os.File
	mu       sync.Mutex
	isSetup  bool
	useJSON  bool
	levelMap = map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
)

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = fmt.Errorf("invalid log level")

func init() {
	leveler.Set(slog.LevelWarn)
	useJSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")
	configure()
}

// configure rebuilds the handler from the current writer state. Callers hold mu
// or run before any concurrent use.
func configure() {
	w := output
	if logFile != nil {
		w = io.MultiWriter(output, logFile)
	}
	opts := &slog.HandlerOptions{Level: leveler}
	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger = slog.New(handler)
}

// SetupLogger additionally writes every record to the given file.
func SetupLogger(logFilePath string) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f
	configure()
	logger.Info("log started", "file", logFilePath, "at", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// CloseLogger detaches and closes the log file, if any.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return
	}
	logger.Info("log closed", "at", time.Now().Format(time.RFC3339))
	logFile.Close()
	logFile = nil
	isSetup = false
	configure()
}

// SetOutput redirects log output and returns a function restoring the previous
// writer. Intended for tests.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()

	prev := output
	output = w
	configure()
	return func() {
		mu.Lock()
		defer mu.Unlock()
		output = prev
		configure()
	}
}

// SetLevel changes the minimum level at runtime.
func SetLevel(level slog.Level) {
	leveler.Set(level)
}

// CurrentLevel reports the active minimum level.
func CurrentLevel() slog.Level {
	return leveler.Level()
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	level, ok := levelMap[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return level, nil
}

// Logger returns the underlying slog logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogInfo logs an informational message with optional key/value pairs.
func LogInfo(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// DebugLog logs a message visible only at debug level.
func DebugLog(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// LogWarning logs a warning.
func LogWarning(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// LogError logs an error.
func LogError(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// LogImageProcessed records the outcome of loading one source image.
func LogImageProcessed(path string, success bool, err error) {
	if success {
		DebugLog("image processed", "path", path)
		return
	}
	LogError("image failed", "path", path, "error", err)
}
