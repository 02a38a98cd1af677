package store

import (
	"fmt"
	"log"
)

type migration struct {
	ID   int
	Name string
	SQL  string
}

// RunMigrations creates the run_ledger schema if it does not already
// exist, recording which migrations have applied the same way the
// reference implementation's database package does.
func (db *DB) RunMigrations() error {
	log.Println("store: running ledger migrations...")

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	migrations := []migration{
		{
			ID:   1,
			Name: "create_run_ledger_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS run_ledger (
					id BIGSERIAL PRIMARY KEY,
					model_id VARCHAR(64) NOT NULL,
					run_time TIMESTAMP WITH TIME ZONE NOT NULL,
					state VARCHAR(32) NOT NULL,
					forecast_hour INTEGER,
					variable_id VARCHAR(64),
					outcome VARCHAR(32),
					detail TEXT,
					recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				)
			`,
		},
		{
			ID:   2,
			Name: "create_run_ledger_indices",
			SQL: `
				CREATE INDEX IF NOT EXISTS idx_run_ledger_model_run
				ON run_ledger(model_id, run_time);

				CREATE INDEX IF NOT EXISTS idx_run_ledger_recorded_at
				ON run_ledger(recorded_at);
			`,
		},
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE name = $1", m.Name).Scan(&count); err != nil {
			return fmt.Errorf("check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO migrations (name) VALUES ($1)", m.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
		log.Printf("store: applied migration %d: %s", m.ID, m.Name)
	}

	return nil
}
