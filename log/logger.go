// Package log builds the zap loggers used across ticknet: console and rotated
// file output behind one mapstructure-tagged configuration struct.
package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogCfg configures logger construction. It is loaded through the config
// manager like every other ticknet configuration.
type LogCfg struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format selects "json" or "console" encoding.
	Format string `mapstructure:"format"`

	// Console mirrors log output to stderr.
	Console bool `mapstructure:"console"`

	// Path is the log file path; empty disables file output.
	Path string `mapstructure:"path"`

	// MaxSizeMB is the rotation threshold for the log file.
	MaxSizeMB int `mapstructure:"maxSizeMB"`

	// MaxBackups is the number of rotated files kept.
	MaxBackups int `mapstructure:"maxBackups"`

	// MaxAgeDays is how long rotated files are retained.
	MaxAgeDays int `mapstructure:"maxAgeDays"`

	// Compress gzips rotated files.
	Compress bool `mapstructure:"compress"`
}

// GetName implements config.Config.
func (c *LogCfg) GetName() string { return "log" }

// Validate implements config.Config.
func (c *LogCfg) Validate() error {
	switch strings.ToLower(c.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log level %q is not one of debug/info/warn/error", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log format %q is not json or console", c.Format)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must not be negative")
	}
	return nil
}

// New builds a zap.Logger from cfg. With neither console nor file output
// enabled it returns a no-op logger, which suits tests and embedded use.
func New(cfg *LogCfg) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LogCfg{Console: true}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevel()
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	var cores []zapcore.Core
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
	}
	if cfg.Path != "" {
		ws := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 64),
			MaxBackups: defaultInt(cfg.MaxBackups, 4),
			MaxAge:     defaultInt(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
