package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // Import the PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// Driver - fot now we only support postgres
const Driver = "postgres"

// NewDb opens a connection pool for connStr, pings it and, unless
// skipMigration is set, brings the schema up to date.
func NewDb(connStr string, skipMigration bool) (*sql.DB, error) {
	db, err := sql.Open(Driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(100)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if !skipMigration {
		if err = Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return db, nil
}

// Migrate applies every pending migration inside a single transaction.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (id INTEGER PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`); err != nil {
		return err
	}
	// Serialize concurrent starters on the same database.
	if _, err = tx.Exec(`LOCK TABLE schema_migrations IN EXCLUSIVE MODE`); err != nil {
		return err
	}

	for _, m := range migrations {
		var applied bool
		if err = tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE id = $1)`, m.ID).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		for _, q := range m.Up {
			if _, err = tx.Exec(q); err != nil {
				return fmt.Errorf("migration %d: %w", m.ID, err)
			}
		}
		if _, err = tx.Exec(`INSERT INTO schema_migrations (id) VALUES ($1)`, m.ID); err != nil {
			return err
		}
		log.Info().Str("c", "postgres").Int("id", m.ID).Msg("applied migration")
	}
	return tx.Commit()
}

// Status returns the ids of the applied and the pending migrations.
func Status(db *sql.DB) (applied, pending []int, err error) {
	var exists bool
	if err = db.QueryRow(`SELECT to_regclass('schema_migrations') IS NOT NULL`).Scan(&exists); err != nil {
		return nil, nil, err
	}
	done := make(map[int]bool)
	if exists {
		rows, err := db.Query(`SELECT id FROM schema_migrations ORDER BY id`)
		if err != nil {
			return nil, nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var id int
			if err = rows.Scan(&id); err != nil {
				return nil, nil, err
			}
			done[id] = true
		}
		if err = rows.Err(); err != nil {
			return nil, nil, err
		}
	}
	for _, m := range migrations {
		if done[m.ID] {
			applied = append(applied, m.ID)
		} else {
			pending = append(pending, m.ID)
		}
	}
	return applied, pending, nil
}
