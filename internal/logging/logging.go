package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger writing to stderr.
// format "json" selects the production encoder, anything else the console one.
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config

	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// Field keys shared by every component.
const (
	KeyRunID = "run_id"
	KeyPRID  = "pr_id"
	KeyKind  = "kind"
)

// PR tags a log line with a pull request id.
func PR(id int64) zap.Field {
	return zap.Int64(KeyPRID, id)
}

// Kind tags a log line with a sub-resource kind.
func Kind(kind string) zap.Field {
	return zap.String(KeyKind, kind)
}
