// Package store is the run ledger: an observational record of scheduler
// state transitions, kept in Postgres so operators can query run history
// without scraping logs. The pipeline's canonical data store is the
// filesystem (GRIB cache + publish directory); this package never gates a
// fetch or render decision, only records one after the fact.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/nwwx/forecastpipe/internal/config"
)

// DB wraps a ledger connection.
type DB struct {
	*sql.DB
}

// Connect opens and pings the ledger database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}
	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}
