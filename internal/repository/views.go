package repository

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
)

// ViewsRepository manages views and the view_subscriptions join table.
type ViewsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewViewsRepository creates a repository bound to db.
func NewViewsRepository(db *sql.DB, log zerolog.Logger) *ViewsRepository {
	return &ViewsRepository{db: db, log: log.With().Str("repository", "views").Logger()}
}

// List returns every view.
func (r *ViewsRepository) List() ([]domain.View, error) {
	rows, err := r.db.Query("SELECT id, name, view_type, is_default FROM views ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var out []domain.View
	for rows.Next() {
		var v domain.View
		var isDefault int
		if err := rows.Scan(&v.ID, &v.Name, &v.ViewType, &isDefault); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		v.IsDefault = isDefault != 0
		out = append(out, v)
	}
	return out, rows.Err()
}

// SubscriptionIDs returns the subscription ids assigned to a view.
func (r *ViewsRepository) SubscriptionIDs(viewID int64) ([]int64, error) {
	rows, err := r.db.Query("SELECT subscription_id FROM view_subscriptions WHERE view_id = ?", viewID)
	if err != nil {
		return nil, fmt.Errorf("failed to list view subscriptions for view %d: %w", viewID, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan view subscription id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddSubscription assigns a subscription to a view. Idempotent.
func (r *ViewsRepository) AddSubscription(viewID, subscriptionID int64) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO view_subscriptions (view_id, subscription_id) VALUES (?, ?)
	`, viewID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to assign subscription %d to view %d: %w", subscriptionID, viewID, err)
	}
	return nil
}

// RemoveSubscription unassigns a subscription from a view. Idempotent.
func (r *ViewsRepository) RemoveSubscription(viewID, subscriptionID int64) error {
	_, err := r.db.Exec(`
		DELETE FROM view_subscriptions WHERE view_id = ? AND subscription_id = ?
	`, viewID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to remove subscription %d from view %d: %w", subscriptionID, viewID, err)
	}
	return nil
}
