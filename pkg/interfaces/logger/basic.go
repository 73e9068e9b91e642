package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Level filters what a BasicLogger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// BasicLogger writes one line per entry: "[LEVEL] msg key=value ...".
type BasicLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  Level
	fields []Field
}

var _ Logger = (*BasicLogger)(nil)

// New returns a basic logger writing to out at the given minimum level.
// A nil writer falls back to stdout.
func New(out io.Writer, level Level) *BasicLogger {
	if out == nil {
		out = os.Stdout
	}
	return &BasicLogger{
		mu:    &sync.Mutex{},
		out:   out,
		level: level,
	}
}

// Default returns an info level logger on stdout.
func Default() Logger {
	return New(os.Stdout, LevelInfo)
}

// With returns a logger that includes fields on each line.
func (l *BasicLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	next := &BasicLogger{
		mu:     l.mu,
		out:    l.out,
		level:  l.level,
		fields: make([]Field, 0, len(l.fields)+len(fields)),
	}
	next.fields = append(next.fields, l.fields...)
	next.fields = append(next.fields, fields...)
	return next
}

func (l *BasicLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, "DEBUG", msg, fields) }
func (l *BasicLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, "INFO", msg, fields) }
func (l *BasicLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, "WARN", msg, fields) }
func (l *BasicLogger) Error(msg string, fields ...Field) { l.log(LevelError, "ERROR", msg, fields) }

func (l *BasicLogger) log(level Level, label, msg string, fields []Field) {
	if level < l.level {
		return
	}
	line := fmt.Sprintf("[%s] %s", label, msg)
	if rendered := formatFields(append(append([]Field{}, l.fields...), fields...)); rendered != "" {
		line += " " + rendered
	}
	l.mu.Lock()
	fmt.Fprintln(l.out, line)
	l.mu.Unlock()
}

func formatFields(fields []Field) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	return strings.Join(parts, " ")
}
