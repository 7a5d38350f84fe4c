// Package db stores a journal of the sightings shown on the panel.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/flightboard/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// connString builds the lib/pq key/value connection string.
func connString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// open configures the pool without touching the network.
func open(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: sqlDB, config: cfg}, nil
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// InitSchema creates the journal table if it does not exist.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Healthy pings the database and runs a trivial query.
func (db *DB) Healthy(ctx context.Context) error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database not connected")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected health check result %d", result)
	}
	return nil
}

// CleanupOldData removes sightings shown before now-maxAge.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	res, err := db.ExecContext(ctx,
		`DELETE FROM displayed_sightings WHERE shown_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sightings: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns journal statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM displayed_sightings`,
	).Scan(&total)
	if err != nil {
		return nil, err
	}
	stats["sightings"] = total

	var callsigns int64
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT callsign) FROM displayed_sightings`,
	).Scan(&callsigns)
	if err != nil {
		return nil, err
	}
	stats["distinct_callsigns"] = callsigns

	var last sql.NullTime
	err = db.QueryRowContext(ctx,
		`SELECT MAX(shown_at) FROM displayed_sightings`,
	).Scan(&last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		stats["last_shown_at"] = last.Time
	}

	return stats, nil
}
