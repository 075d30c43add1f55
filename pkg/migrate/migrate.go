package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations/postgres"
	SQLiteDir  = "pkg/migrate/migrations/sqlite"
)

// DialectFor maps a configured DB driver onto the goose dialect and the
// migrations directory written for it.
func DialectFor(driver string) (goose.Dialect, string) {
	if driver == "sqlite" {
		return goose.DialectSQLite3, "sqlite"
	}
	return goose.DialectPostgres, "postgres"
}

// DirFor returns the on-disk migrations directory for a DB driver.
func DirFor(driver string) string {
	if _, sub := DialectFor(driver); sub == "sqlite" {
		return SQLiteDir
	}
	return DefaultDir
}

// Run executes a standard goose command that requires a DB connection.
func Run(ctx context.Context, db *sql.DB, driver, dir, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	dialect, _ := DialectFor(driver)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion migrates up or down to the requested version.
func MigrateToVersion(ctx context.Context, db *sql.DB, driver, dir, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	dialect, _ := DialectFor(driver)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}

	current, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return nil
	default:
		if err := goose.DownToContext(ctx, db, dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// UpEmbedded applies the migrations compiled into the binary. It uses a goose
// Provider, so it does not touch goose's global state and is safe in tests.
func UpEmbedded(ctx context.Context, db *sql.DB, driver string) error {
	dialect, sub := DialectFor(driver)
	fsys, err := migrationsFS(path.Join("migrations", sub))
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
