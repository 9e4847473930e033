package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/visioncraft/storefront/internal/config"
)

// New builds the process logger. Production uses zap's production preset,
// everything else the development preset, both tuned by cfg.Log.
func New(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if cfg.Log.Encoding != "" {
		zc.Encoding = cfg.Log.Encoding
	}
	if len(cfg.Log.OutputPaths) > 0 {
		zc.OutputPaths = cfg.Log.OutputPaths
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("service", "storefront"), zap.String("env", cfg.Environment)), nil
}
