package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger for the given subsystem.
// level: debug|info|warn|error, format: json|console.
func New(subsystem, level, format string) zerolog.Logger {
	return NewWithWriter(subsystem, level, writerForFormat(format))
}

// NewWithWriter builds a logger writing to the supplied writer. Tests use
// this with io.Discard or a capture buffer.
func NewWithWriter(subsystem, level string, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Str("subsystem", subsystem).Logger()
}

// Nop returns a disabled logger for components that were handed none.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func parseLevel(s string) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s))); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

func writerForFormat(format string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return os.Stderr
}
