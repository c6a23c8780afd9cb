package migration

import (
	"strings"

	"github.com/smallbiznis/lubeqc/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply runs pending migrations against the shared gorm connection.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	dbType := strings.ToLower(strings.TrimSpace(cfg.DBType))
	if err := RunMigrations(sqlDB, dbType); err != nil {
		return err
	}
	log.Info("migrations applied", zap.String("type", dbType))
	return nil
}
