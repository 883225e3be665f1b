package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodrun-backend/pkg/config"
	"github.com/angelmondragon/foodrun-backend/pkg/db"
	"github.com/angelmondragon/foodrun-backend/pkg/logger"
)

// MaybeRunDev brings a local database up to date at boot when the service
// runs in dev with FOODRUN_AUTO_MIGRATE set. Other environments migrate
// through cmd/migrate before a deploy.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.DB.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "applying migrations (dev auto-migrate)")
	return runner.Up(ctx)
}
