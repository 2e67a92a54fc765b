package db

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies pending goose migrations from dir against dsn.
func Migrate(dsn, dir string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open for migrate: %w", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("platform/db: migrate up: %w", err)
	}
	return nil
}
