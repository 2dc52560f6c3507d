// Package logging provides structured logging using zerolog.
//
// Besides the usual console/file sinks it keeps an in-memory ring of the
// most recent lines, which backs the diagnostics log surfaced by the
// `logs` command and GET /logs.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents log levels.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Pretty enables human-readable console output.
	Pretty bool
	// TimeFormat specifies the time format. Defaults to RFC3339.
	TimeFormat string
	// LogToFile additionally writes JSON lines to a timestamped file.
	LogToFile bool
	// LogDir is where log files are created. Defaults to /tmp.
	LogDir string
	// RingSize is the number of recent lines retained for the
	// diagnostics log. Defaults to 1000; negative disables the ring.
	RingSize int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		Pretty:     false,
		TimeFormat: time.RFC3339,
		LogToFile:  false,
		LogDir:     "/tmp",
	}
}

var (
	mu      sync.Mutex
	logFile *os.File
	ring    *Ring
)

// Init initializes the global logger with the given configuration.
// Calling it again closes any previously opened log file.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/tmp"
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = 1000
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var console io.Writer = cfg.Output
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{
			Out:        cfg.Output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	mu.Lock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	sinks := []io.Writer{console}
	if cfg.LogToFile {
		name := fmt.Sprintf("streekeeper-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			logFile = f
			sinks = append(sinks, f)
		} else {
			fmt.Fprintf(os.Stderr, "logging: cannot open log file: %v\n", err)
		}
	}
	if cfg.RingSize > 0 {
		ring = NewRing(cfg.RingSize)
		sinks = append(sinks, ring)
	} else {
		ring = nil
	}
	mu.Unlock()

	var out io.Writer
	if len(sinks) == 1 {
		out = sinks[0]
	} else {
		out = zerolog.MultiLevelWriter(sinks...)
	}

	Logger = zerolog.New(out).
		Level(cfg.Level).
		With().
		Timestamp().
		Logger()
}

// Close releases the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// GetLogFilePath returns the path of the active log file, or "" when not
// logging to a file.
func GetLogFilePath() string {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return ""
	}
	return logFile.Name()
}

// Recent returns up to n of the most recent log lines, oldest first.
// n <= 0 returns everything retained.
func Recent(n int) []string {
	mu.Lock()
	r := ring
	mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Snapshot(n)
}

// ParseLevel parses a log level string (case-insensitive).
// Supported values: DEBUG, INFO, WARN, ERROR, FATAL.
// Returns InfoLevel if the string is not recognized.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Debug starts a new debug level log message.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Info starts a new info level log message.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Warn starts a new warn level log message.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Error starts a new error level log message.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Fatal starts a new fatal level log message.
// Calling Msg or Send on the returned event will call os.Exit(1).
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// With creates a child logger with the given fields.
func With() zerolog.Context {
	return Logger.With()
}

// init sets up a default logger so the package is usable without explicit initialization.
func init() {
	Init(DefaultConfig())
}
