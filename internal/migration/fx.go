package migration

import (
	"github.com/agrovista/agrigate/internal/auth/domain"
	"github.com/agrovista/agrigate/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite for local runs: schema comes from the models directly.
			return conn.AutoMigrate(
				&domain.User{},
				&domain.AppSession{},
				&domain.Log{},
				&domain.ActivityLog{},
				&domain.PredictionLog{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
