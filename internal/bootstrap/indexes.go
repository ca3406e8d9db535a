package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/craftlab/canvas-gateway/internal/repository"
)

// EnsureIndexes creates the user collection's unique indexes at startup
// so identity upserts can rely on duplicate-key detection.
func EnsureIndexes(lc fx.Lifecycle, repo *repository.MongoUserRepo, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := repo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("ensure user indexes: %w", err)
			}
			logger.Info("user indexes ensured")
			return nil
		},
	})
}
