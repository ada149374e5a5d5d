package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger defines the interface for logging throughout the application.
// Different implementations can be used for different contexts (console, silent, recording, etc.)
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Level names accepted by ParseLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelError = "error"
)

// Output formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZerologLogger writes leveled logs through zerolog.
// Used for normal operation and debugging.
type ZerologLogger struct {
	log zerolog.Logger
}

// New creates a logger writing to w in the given format ("console" or "json")
// and dropping entries below level.
func New(w io.Writer, format, level string) (*ZerologLogger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(format) {
	case "", FormatConsole:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return &ZerologLogger{
		log: zerolog.New(w).Level(lvl).With().Timestamp().Logger(),
	}, nil
}

// ParseLevel maps a level name to a zerolog level. An empty name means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case "", LevelInfo:
		return zerolog.InfoLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func (z *ZerologLogger) Info(msg string, args ...interface{}) {
	z.log.Info().Msgf(msg, args...)
}

func (z *ZerologLogger) Error(msg string, args ...interface{}) {
	z.log.Error().Msgf(msg, args...)
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) {
	z.log.Debug().Msgf(msg, args...)
}

// SilentLogger discards all log messages.
// Used by components whose output nobody reads, such as tests.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}

// Entry is a single formatted log line captured by MemoryLogger.
type Entry struct {
	Level   string
	Message string
}

// MemoryLogger records formatted entries in memory. Safe for concurrent use.
// Tests use it to assert what a component observed.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (m *MemoryLogger) Info(msg string, args ...interface{}) {
	m.add(LevelInfo, msg, args)
}

func (m *MemoryLogger) Error(msg string, args ...interface{}) {
	m.add(LevelError, msg, args)
}

func (m *MemoryLogger) Debug(msg string, args ...interface{}) {
	m.add(LevelDebug, msg, args)
}

func (m *MemoryLogger) add(level, msg string, args []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Message: fmt.Sprintf(msg, args...)})
}

// Entries returns a copy of everything recorded so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Level returns the recorded entries at the given level.
func (m *MemoryLogger) Level(level string) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
