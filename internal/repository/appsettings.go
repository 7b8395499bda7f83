// Package repository provides the data-access layer over market.db:
// application settings, subscriptions, per-provider settings, views, and
// recorded price history.
package repository

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// AppSettingsRepository manages key/value rows in app_settings, the
// override layer config.UpdateFromSettings reads from.
type AppSettingsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAppSettingsRepository creates a repository bound to db.
func NewAppSettingsRepository(db *sql.DB, log zerolog.Logger) *AppSettingsRepository {
	return &AppSettingsRepository{db: db, log: log.With().Str("repository", "app_settings").Logger()}
}

// Get returns a setting's value, or nil if the key doesn't exist.
func (r *AppSettingsRepository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set upserts a setting value.
func (r *AppSettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// GetAll returns every setting as a map.
func (r *AppSettingsRepository) GetAll() (map[string]string, error) {
	rows, err := r.db.Query("SELECT key, value FROM app_settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get all settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			r.log.Warn().Err(err).Msg("failed to scan setting row")
			continue
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}
	return result, nil
}
