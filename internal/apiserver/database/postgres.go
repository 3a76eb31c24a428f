package database

import (
	"github.com/amoylab/wshub/internal/common/config"

	"gorm.io/driver/postgres"
)

// NewPostgres opens a PostgreSQL backed Database
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	return newStore(postgres.Open(cfg.GetDSN()), 0)
}
