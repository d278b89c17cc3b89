package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	CorrelationID = "correlation_id"

	correlationKey contextKey = "correlation-id"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
}

// Configure sets the level ("debug", "info", ...) and output format ("json" or "text").
func Configure(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	log.SetLevel(lvl)
	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFrom returns the id stored in ctx, or "".
func CorrelationIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

func entry(ctx context.Context) *logrus.Entry {
	return log.WithField(CorrelationID, CorrelationIDFrom(ctx))
}

func Infof(ctx context.Context, format string, args ...any) {
	entry(ctx).Infof(format, args...)
}

func Debugf(ctx context.Context, format string, args ...any) {
	entry(ctx).Debug(escape(format, args...))
}

func Warnf(ctx context.Context, format string, args ...any) {
	entry(ctx).Warnf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	entry(ctx).Error(escape(format, args...))
}

func Fatalf(ctx context.Context, format string, args ...any) {
	entry(ctx).Fatalf(format, args...)
}

// escape keeps multi-line error text on one log line.
func escape(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	return strings.NewReplacer("\r\n", "\\n ", "\n", "\\n ").Replace(msg)
}
