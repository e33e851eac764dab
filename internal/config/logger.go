package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger monta o logger JSON de produção; em development usa o console encoder.
func NewLogger(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		zc.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "prospect-pipeline")), nil
}
