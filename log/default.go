package log

import (
	"context"
	"os"
	"sync/atomic"
)

var std atomic.Pointer[Logger]

func init() {
	std.Store(New(os.Stderr, InfoLevel))
}

func Default() *Logger {
	return std.Load()
}

// ResetDefault replaces the logger used by the package level functions.
// Not meant to be called concurrently with log calls during startup.
func ResetDefault(l *Logger) {
	std.Store(l)
}

func Debug(msg string, fields ...Field) { std.Load().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { std.Load().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { std.Load().Warn(msg, fields...) }
func Error(msg string, fields ...Field) { std.Load().Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { std.Load().Fatal(msg, fields...) }

func Fatalf(template string, args ...any) { std.Load().Fatalf(template, args...) }

type ctxKey struct{}

func AddToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// GetFromContext returns the logger stored in ctx or the default logger.
func GetFromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Default()
}
