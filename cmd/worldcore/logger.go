package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/citysim/worldcore/internal/config"
)

// newLogger builds the process logger: colored console or JSON on stderr,
// plus a rotated JSON file when logging.file is set.
func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.File == "" {
		return zapCfg.Build()
	}

	var stderrEnc zapcore.Encoder
	if cfg.Format == "json" {
		stderrEnc = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	} else {
		stderrEnc = zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	}
	fileEncCfg := zap.NewProductionEncoderConfig()
	fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewTee(
		zapcore.NewCore(stderrEnc, zapcore.Lock(os.Stderr), zapCfg.Level),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), file, zapCfg.Level),
	)
	return zap.New(core), nil
}
