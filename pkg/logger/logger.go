package logger

import (
	"log/slog"
	"os"
	"strings"
)

var (
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
)

func Init(env string) {
	if env == "production" {
		level.Set(slog.LevelInfo)
		setHandler("json")
		return
	}
	level.Set(slog.LevelDebug)
	setHandler("text")
}

// InitFormat keeps the current level and switches the output format ("json" or "text").
func InitFormat(format string) {
	setHandler(format)
}

func setHandler(format string) {
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// SetLevel changes the level of the default logger at runtime. Unknown names are ignored.
func SetLevel(name string) bool {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return false
	}
	return true
}

func Level() slog.Level {
	return level.Level()
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}
