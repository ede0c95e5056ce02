package log

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Log interface {
	Log(level Level, msg string, fields ...Field)

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Log
	WithContext(ctx context.Context) Log

	Enabled(level Level) bool
	SetLevel(level Level)
	GetLevel() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent Level = 101
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelSilent:
		return "silent"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// ParseLevel maps a config string onto a Level. Empty input means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "none", "off":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Field is a structured logging field. Fields are zap fields so callers on the hot
// path pay no conversion cost.
type Field = zap.Field

var (
	Any      = zap.Any
	Bool     = zap.Bool
	Duration = zap.Duration
	Int      = zap.Int
	Int32    = zap.Int32
	Int64    = zap.Int64
	String   = zap.String
	Stringer = zap.Stringer
	Uint64   = zap.Uint64
)

func Error(err error) Field {
	return zap.Error(err)
}

func ErrorWithKey(key string, err error) Field {
	return zap.NamedError(key, err)
}
