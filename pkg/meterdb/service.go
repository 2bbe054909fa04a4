// MeterDB contains data specifically about smart meter readings.
// This database should only be written to by meter_collector
// but can be read by any service.
package meterdb

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var MigrationFS embed.FS

// Open connects to the sqlite file at path without touching the schema.
func Open(path string) (*MeterDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open meter db: %w", err)
	}
	// Verify connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach meter db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return &MeterDB{db: db}, nil
}

// InitializeDatabase opens the database and applies pending migrations.
// Must be called on startup.
func InitializeDatabase(path string) (*MeterDB, error) {
	m, err := Open(path)
	if err != nil {
		return nil, err
	}

	// Apply migrations
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		m.db,
		MigrationFS,
		"migrations",
	)

	if _, err := m.db.Exec("SELECT 1 FROM reading_updates LIMIT 1"); err != nil {
		m.Close()
		return nil, fmt.Errorf("meter db schema missing after migration: %w", err)
	}
	return m, nil
}

func (m *MeterDB) DB() *sql.DB {
	return m.db
}

func (m *MeterDB) Close() error {
	return m.db.Close()
}
