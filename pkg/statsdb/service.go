// Package statsdb stores long-term hourly statistics per meter sensor.
// Rows are keyed by statistic and hour start, so importing the same rows
// again overwrites them instead of duplicating.
package statsdb

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"
	log "github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path. InitializeDatabase must be called
// before first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open statistics database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping statistics database: %w", err)
	}
	return &Store{db: db}, nil
}

// InitializeDatabase applies pending migrations.
func (s *Store) InitializeDatabase() {
	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		s.db,
		migrationFS,
		"migrations",
	)
	log.Debug("Statistics database migrations applied")
}

func (s *Store) Close() error {
	return s.db.Close()
}
