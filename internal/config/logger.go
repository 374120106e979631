package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelAliases maps the level names older netpadd configs used.
var levelAliases = map[string]string{
	"warning":  "warn",
	"critical": "fatal",
	"notset":   "debug",
}

// NewLogger builds the daemon logger from "logging.level" and
// "logging.format" (json or console).
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	level := v.GetString("logging.level")
	format := v.GetString("logging.format")

	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("%w: log format %q: must be \"json\" or \"console\"", ErrInvalidConfig, format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.InitialFields = map[string]any{"service": "netpadd"}

	return cfg.Build()
}

func parseLevel(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return l, fmt.Errorf("%w: log level %q: %v", ErrInvalidConfig, level, err)
	}
	return l, nil
}
