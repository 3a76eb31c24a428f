package database

import (
	"github.com/amoylab/wshub/internal/common/config"

	"github.com/glebarez/sqlite"
)

// NewSQLite opens a SQLite backed Database. ":memory:" is pinned to a single
// connection so every query sees the same database.
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	maxOpen := 0
	if cfg.DBName == ":memory:" {
		maxOpen = 1
	}
	return newStore(sqlite.Open(cfg.GetDSN()), maxOpen)
}
