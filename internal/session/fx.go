package session

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func registerHooks(lc fx.Lifecycle, s *Session, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := s.Close(); err != nil {
				log.Warn("session cleanup failed", zap.Error(err))
			}
			return nil
		},
	})
}

var Module = fx.Module("session",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
