package auth

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps l
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: l}
}

// NewRootLogger builds the process logger. Unknown levels fall back to info.
func NewRootLogger(level string, pretty bool) *ZerologLogger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return NewZerologLogger(zerolog.New(w).Level(lvl).With().Timestamp().Logger())
}

// With returns a child logger carrying a component field
func (z *ZerologLogger) With(component string) *ZerologLogger {
	return &ZerologLogger{log: z.log.With().Str("component", component).Logger()}
}

// Zerolog returns the wrapped logger
func (z *ZerologLogger) Zerolog() zerolog.Logger {
	return z.log
}

func (z *ZerologLogger) Debug(msg string, args ...any) {
	z.write(z.log.Debug(), msg, args)
}

func (z *ZerologLogger) Info(msg string, args ...any) {
	z.write(z.log.Info(), msg, args)
}

func (z *ZerologLogger) Warn(msg string, args ...any) {
	z.write(z.log.Warn(), msg, args)
}

func (z *ZerologLogger) Error(msg string, args ...any) {
	z.write(z.log.Error(), msg, args)
}

func (z *ZerologLogger) write(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	if len(args)%2 == 1 {
		args = append(args, "<missing>")
	}
	e.Fields(args).Msg(msg)
}
