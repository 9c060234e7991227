package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nimburion/recordlock/pkg/identity"
)

// Format selects the zap encoder.
type Format string

const (
	JSONFormat Format = "json"
	TextFormat Format = "text"
)

// Config is the logger setup. Level and Format take the values accepted by
// ParseLevel and ParseFormat.
type Config struct {
	Level  string
	Format string
	Output io.Writer // stdout when nil
}

// Zap implements Logger with a sugared zap logger.
type Zap struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a Zap logger writing to cfg.Output.
func New(cfg Config) (*Zap, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder

	encoder := zapcore.NewJSONEncoder(enc)
	if format == TextFormat {
		encoder = zapcore.NewConsoleEncoder(enc)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	base := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Zap{base: base, sugar: base.Sugar()}, nil
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	base := zap.NewNop()
	return &Zap{base: base, sugar: base.Sugar()}
}

func (z *Zap) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z *Zap) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *Zap) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *Zap) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

func (z *Zap) With(args ...any) Logger {
	return &Zap{base: z.base, sugar: z.sugar.With(args...)}
}

func (z *Zap) WithContext(ctx context.Context) Logger {
	var fields []any
	if id, ok := identity.RequestID(ctx); ok {
		fields = append(fields, "request_id", id)
	}
	if actor, ok := identity.Actor(ctx); ok {
		fields = append(fields, "actor", actor)
	}
	if len(fields) == 0 {
		return z
	}
	return z.With(fields...)
}

// Sync flushes buffered entries.
func (z *Zap) Sync() error {
	return z.base.Sync()
}

// ParseLevel accepts debug, info, warn, warning and error in any case.
// Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "debug", "info", "warn", "error":
		return zapcore.ParseLevel(s)
	}
	return zapcore.InfoLevel, fmt.Errorf("invalid log level: %q", s)
}

// ParseFormat accepts json and text, with console as an alias of text.
// Empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	}
	return "", fmt.Errorf("invalid log format: %q", s)
}
