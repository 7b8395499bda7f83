package repository

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
)

// ProviderSettingsRepository manages the provider_settings table: the
// per-provider credential, URL, and interval overrides.
type ProviderSettingsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProviderSettingsRepository creates a repository bound to db.
func NewProviderSettingsRepository(db *sql.DB, log zerolog.Logger) *ProviderSettingsRepository {
	return &ProviderSettingsRepository{db: db, log: log.With().Str("repository", "provider_settings").Logger()}
}

// Get returns the stored settings for a provider, or nil if no row exists
// (meaning the provider runs entirely on registry defaults).
func (r *ProviderSettingsRepository) Get(providerID string) (*domain.ProviderSettings, error) {
	row := r.db.QueryRow(`
		SELECT provider_id, api_key, api_secret, api_url, refresh_interval,
		       connection_type, record_from_hour, record_to_hour
		FROM provider_settings WHERE provider_id = ?
	`, providerID)

	var p domain.ProviderSettings
	err := row.Scan(&p.ProviderID, &p.APIKey, &p.APISecret, &p.APIURL, &p.RefreshInterval,
		&p.ConnectionType, &p.RecordFromHour, &p.RecordToHour)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider settings for %s: %w", providerID, err)
	}
	return &p, nil
}

// List returns every stored provider settings row.
func (r *ProviderSettingsRepository) List() ([]domain.ProviderSettings, error) {
	rows, err := r.db.Query(`
		SELECT provider_id, api_key, api_secret, api_url, refresh_interval,
		       connection_type, record_from_hour, record_to_hour
		FROM provider_settings
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider settings: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderSettings
	for rows.Next() {
		var p domain.ProviderSettings
		if err := rows.Scan(&p.ProviderID, &p.APIKey, &p.APISecret, &p.APIURL, &p.RefreshInterval,
			&p.ConnectionType, &p.RecordFromHour, &p.RecordToHour); err != nil {
			return nil, fmt.Errorf("failed to scan provider settings: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces one provider's settings row.
func (r *ProviderSettingsRepository) Upsert(p domain.ProviderSettings) error {
	_, err := r.db.Exec(`
		INSERT INTO provider_settings (
			provider_id, api_key, api_secret, api_url, refresh_interval,
			connection_type, record_from_hour, record_to_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			api_key = excluded.api_key,
			api_secret = excluded.api_secret,
			api_url = excluded.api_url,
			refresh_interval = excluded.refresh_interval,
			connection_type = excluded.connection_type,
			record_from_hour = excluded.record_from_hour,
			record_to_hour = excluded.record_to_hour
	`, p.ProviderID, p.APIKey, p.APISecret, p.APIURL, p.RefreshInterval,
		p.ConnectionType, p.RecordFromHour, p.RecordToHour)
	if err != nil {
		return fmt.Errorf("failed to upsert provider settings for %s: %w", p.ProviderID, err)
	}
	return nil
}
