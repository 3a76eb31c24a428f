package database

import (
	"github.com/amoylab/wshub/internal/common/config"

	"gorm.io/driver/mysql"
)

// NewMySQL opens a MySQL backed Database
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	return newStore(mysql.Open(cfg.GetDSN()), 0)
}
