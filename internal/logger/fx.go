package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"sparkify_etl/internal/config"
)

// NewFromConfig creates the job logger from Config.
func NewFromConfig(cfg config.Config) (*zap.Logger, error) {
	log, err := New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("app", cfg.AppName)), nil
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

var Module = fx.Module("logger",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerHooks),
)
