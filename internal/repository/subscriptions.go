package repository

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
)

// SubscriptionsRepository manages the subscriptions table.
type SubscriptionsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSubscriptionsRepository creates a repository bound to db.
func NewSubscriptionsRepository(db *sql.DB, log zerolog.Logger) *SubscriptionsRepository {
	return &SubscriptionsRepository{db: db, log: log.With().Str("repository", "subscriptions").Logger()}
}

const subscriptionColumns = `
	id, sub_type, symbol, display_name, selected_provider_id, asset_type,
	pool_address, token_from_address, token_to_address, sort_order,
	record_enabled, record_from_hour, record_to_hour
`

func scanSubscription(scanner interface {
	Scan(dest ...any) error
}) (domain.Subscription, error) {
	var s domain.Subscription
	var recordEnabled int
	err := scanner.Scan(
		&s.ID, &s.SubType, &s.Symbol, &s.DisplayName, &s.SelectedProviderID, &s.AssetType,
		&s.PoolAddress, &s.TokenFromAddress, &s.TokenToAddress, &s.SortOrder,
		&recordEnabled, &s.RecordFromHour, &s.RecordToHour,
	)
	s.RecordEnabled = recordEnabled != 0
	return s, err
}

// Create inserts a new subscription and returns its assigned id.
func (r *SubscriptionsRepository) Create(s domain.Subscription) (int64, error) {
	recordEnabled := 0
	if s.RecordEnabled {
		recordEnabled = 1
	}
	result, err := r.db.Exec(`
		INSERT INTO subscriptions (
			sub_type, symbol, display_name, selected_provider_id, asset_type,
			pool_address, token_from_address, token_to_address, sort_order,
			record_enabled, record_from_hour, record_to_hour
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.SubType, s.Symbol, s.DisplayName, s.SelectedProviderID, s.AssetType,
		s.PoolAddress, s.TokenFromAddress, s.TokenToAddress, s.SortOrder,
		recordEnabled, s.RecordFromHour, s.RecordToHour)
	if err != nil {
		return 0, fmt.Errorf("failed to create subscription: %w", err)
	}
	return result.LastInsertId()
}

// Get returns one subscription by id.
func (r *SubscriptionsRepository) Get(id int64) (*domain.Subscription, error) {
	row := r.db.QueryRow("SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)
	s, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", id, err)
	}
	return &s, nil
}

// List returns every subscription ordered for display.
func (r *SubscriptionsRepository) List() ([]domain.Subscription, error) {
	rows, err := r.db.Query("SELECT " + subscriptionColumns + " FROM subscriptions ORDER BY sort_order ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListEnabledForRecording returns only subscriptions with RecordEnabled set,
// the set the history recorder gates writes against.
func (r *SubscriptionsRepository) ListEnabledForRecording() ([]domain.Subscription, error) {
	rows, err := r.db.Query("SELECT " + subscriptionColumns + " FROM subscriptions WHERE record_enabled = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to list recording subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update replaces the mutable fields of a subscription in place.
func (r *SubscriptionsRepository) Update(s domain.Subscription) error {
	recordEnabled := 0
	if s.RecordEnabled {
		recordEnabled = 1
	}
	_, err := r.db.Exec(`
		UPDATE subscriptions SET
			display_name = ?, selected_provider_id = ?, asset_type = ?,
			sort_order = ?, record_enabled = ?, record_from_hour = ?, record_to_hour = ?
		WHERE id = ?
	`, s.DisplayName, s.SelectedProviderID, s.AssetType,
		s.SortOrder, recordEnabled, s.RecordFromHour, s.RecordToHour, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", s.ID, err)
	}
	return nil
}

// Delete removes a subscription. Idempotent.
func (r *SubscriptionsRepository) Delete(id int64) error {
	_, err := r.db.Exec("DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription %d: %w", id, err)
	}
	return nil
}
