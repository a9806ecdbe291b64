package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger      = zap.NewNop().Sugar()
	AtomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// InitLogger must run after the .env file is loaded so LOG_LEVEL can come from it.
func InitLogger() error {
	logLevel, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		logLevel = "INFO"
	}
	atomicLevel, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return fmt.Errorf("%w: invalid LOG_LEVEL %q: %w", ErrConfig, logLevel, err)
	}
	AtomicLevel.SetLevel(atomicLevel.Level())

	config := zap.Config{
		Level:       AtomicLevel,
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		// stdout carries tables and reports only
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	Logger = logger.Sugar()
	return nil
}
