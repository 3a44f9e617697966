package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error message: %v", err)
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

var migrations = []string{
	// Dashboard accounts
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('operator', 'admin')),
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,

	`CREATE TABLE IF NOT EXISTS fleets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,

	// Provider unit ids per fleet, kept in configured order
	`CREATE TABLE IF NOT EXISTS fleet_units (
		fleet_id TEXT NOT NULL,
		unit_id TEXT NOT NULL,
		position INT NOT NULL DEFAULT 0,
		PRIMARY KEY (fleet_id, unit_id),
		FOREIGN KEY (fleet_id) REFERENCES fleets(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS zones (
		id TEXT PRIMARY KEY,
		fleet_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK(kind IN ('home_base', 'secondary_holding', 'disposal_site')),
		label TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		FOREIGN KEY (fleet_id) REFERENCES fleets(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_zones_fleet_id ON zones(fleet_id)`,

	// Runtime thresholds changed through the admin API
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`,
}

func Migrate(db *sqlx.DB) error {
	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("✅ Database migrations completed (%d statements)", len(migrations))
	return nil
}
