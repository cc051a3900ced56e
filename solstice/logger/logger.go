package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
)

// Handler is a compact coloured console handler. Gateway chatter from the
// Discord client is filtered out; everything else is one line per record.
type Handler struct {
	opts  *slog.HandlerOptions
	attrs []slog.Attr
}

func NewHandler(level slog.Level) *Handler {
	return &Handler{
		opts: &slog.HandlerOptions{Level: level},
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		opts:  h.opts,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkip(r.Message) {
		return nil
	}

	timestamp := time.Now().Format("15:04:05")

	var levelColor, levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelColor, levelText = colorPurple, "DEBUG"
	case slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	case slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	default:
		levelColor, levelText = colorRed, "ERROR"
	}

	logType := TypeSystem
	var attrsStr strings.Builder

	appendAttr := func(a slog.Attr) bool {
		if a.Key == "type" {
			switch a.Value.String() {
			case "cmd":
				logType = TypeCommand
			case "db":
				logType = TypeDB
			}
			return true
		}
		fmt.Fprintf(&attrsStr, " %s=%v", a.Key, a.Value)
		return true
	}

	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)

	fmt.Printf("%s[solstice] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		timestamp,
		levelColor,
		levelText,
		colorWhite,
		logType,
		r.Message,
		attrsStr.String(),
		colorReset,
	)

	return nil
}

// shouldSkip drops high-volume disgo gateway/rest noise.
func shouldSkip(message string) bool {
	skipped := []string{
		"gateway event",
		"received gateway message",
		"sending gateway command",
		"sending heartbeat",
		"locking buckets",
		"unlocking buckets",
		"locking rest bucket",
		"unlocking rest bucket",
		"new request",
		"new response",
	}

	lower := strings.ToLower(message)
	for _, skip := range skipped {
		if strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}
