package pipeline

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// runOnStart launches the job once the app has started and shuts the app
// down with a non-zero exit code if it fails.
func runOnStart(lc fx.Lifecycle, shutdowner fx.Shutdowner, p *Pipeline, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				if err := p.Run(ctx); err != nil {
					log.Error("pipeline failed", zap.Error(err))
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

var Module = fx.Module("pipeline",
	fx.Provide(New),
	fx.Invoke(runOnStart),
)
