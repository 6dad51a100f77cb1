// Package db provides a lightweight GORM-based SQLite wrapper for the local
// tip journal.
package db

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/megavibe/megavibe-node/tipClient/store"
)

const (
	// InMemorySQLiteDSN opens a journal that lives only as long as its connection
	InMemorySQLiteDSN = ":memory:"

	// DefaultFileName is the journal file under <home>/databases
	DefaultFileName = "tips.db"

	// fileDSNParams lets the API read the journal while the recorder writes
	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000&mode=rwc"

	journalDirPermissions = 0o750
)

var (
	gormConfig = &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	journalModels = []any{
		&store.Tip{},
		&store.TipStatus{},
	}
)

// DB is the tip journal: one row per tip plus its status history
type DB struct {
	client *gorm.DB
}

// OpenFileDB opens the journal file in dir, creating both when missing.
// migrateSchema creates or updates the tip tables.
func OpenFileDB(dir, filename string, migrateSchema bool) (*DB, error) {
	dsn, err := prepareFilePath(dir, filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare journal path")
	}
	return openSQLite(dsn, migrateSchema)
}

// OpenInMemoryDB opens a journal that is dropped on Close
func OpenInMemoryDB(migrateSchema bool) (*DB, error) {
	return openSQLite(InMemorySQLiteDSN, migrateSchema)
}

func openSQLite(dsn string, migrateSchema bool) (*DB, error) {
	if dsn != InMemorySQLiteDSN && !strings.Contains(dsn, "?") {
		dsn += fileDSNParams
	}

	client, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open tip journal")
	}

	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// The recorder is the only writer and ApplyStatus reads then updates a
	// tip inside one transaction. A single connection queues API reads behind
	// it instead of failing with SQLITE_BUSY, and keeps an in-memory journal
	// from vanishing when an idle connection is recycled.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if migrateSchema {
		if err := client.AutoMigrate(journalModels...); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "failed to migrate tip journal schema")
		}
	}

	return &DB{client: client}, nil
}

// Client returns the gorm handle for queries outside this package
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Close closes the journal connection
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to retrieve native sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Wrap(err, "failed to close tip journal")
	}
	return nil
}

func prepareFilePath(dir, filename string) (string, error) {
	if strings.Contains(dir, InMemorySQLiteDSN) {
		return dir, nil
	}

	if err := os.MkdirAll(dir, journalDirPermissions); err != nil {
		return "", errors.Wrapf(err, "failed to create journal directory %s", dir)
	}
	return filepath.Join(dir, filename), nil
}
