package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// NewDB opens the durable session store. SQLite files are created on demand;
// the pool is pinned to a single connection so ":memory:" databases stay shared.
func NewDB(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	case DriverMySQL:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", driver, err)
	}

	return db, nil
}

// Migrate creates the session table if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmt string
	switch driver {
	case DriverSQLite:
		stmt = `
	CREATE TABLE IF NOT EXISTS session_kv (
		item_key TEXT NOT NULL PRIMARY KEY,
		item_value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	case DriverMySQL:
		stmt = `
	CREATE TABLE IF NOT EXISTS session_kv (
		item_key VARCHAR(64) NOT NULL PRIMARY KEY,
		item_value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);`
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	_, err := db.ExecContext(ctx, stmt)
	return err
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
