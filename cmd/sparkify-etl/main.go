package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"sparkify_etl/internal/config"
	"sparkify_etl/internal/logger"
	"sparkify_etl/internal/metrics"
	"sparkify_etl/internal/pipeline"
	"sparkify_etl/internal/session"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		session.Module,
		pipeline.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)

	app.Run()
}
