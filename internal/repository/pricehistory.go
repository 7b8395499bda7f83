package repository

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/haloboard/marketfeed/internal/domain"
)

// PriceHistoryRepository manages the append-mostly price_history table.
// Decimal values are stored as TEXT to avoid float round-tripping loss,
// the same approach the teacher takes for its ledger amounts.
type PriceHistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceHistoryRepository creates a repository bound to db.
func NewPriceHistoryRepository(db *sql.DB, log zerolog.Logger) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db, log: log.With().Str("repository", "price_history").Logger()}
}

func decimalPtrString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// Insert writes one sample.
func (r *PriceHistoryRepository) Insert(h domain.PriceHistory) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO price_history (
			subscription_id, provider_id, price, change_pct, volume, pre_price, post_price, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.SubscriptionID, h.ProviderID, h.Price.String(),
		decimalPtrString(h.ChangePct), decimalPtrString(h.Volume),
		decimalPtrString(h.PrePrice), decimalPtrString(h.PostPrice), h.RecordedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert price history row: %w", err)
	}
	return result.LastInsertId()
}

// LastRecordedAt returns the timestamp of the most recent sample for a
// subscription, used by the recorder's 5-second dedup gate. Returns 0 if no
// sample has ever been recorded.
func (r *PriceHistoryRepository) LastRecordedAt(subscriptionID int64) (int64, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(`
		SELECT MAX(recorded_at) FROM price_history WHERE subscription_id = ?
	`, subscriptionID).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("failed to read last recorded time for subscription %d: %w", subscriptionID, err)
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

func scanPriceHistory(rows *sql.Rows) (domain.PriceHistory, error) {
	var h domain.PriceHistory
	var price string
	var changePct, volume, prePrice, postPrice sql.NullString
	if err := rows.Scan(&h.ID, &h.SubscriptionID, &h.ProviderID, &price,
		&changePct, &volume, &prePrice, &postPrice, &h.RecordedAt); err != nil {
		return h, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return h, fmt.Errorf("corrupt price value %q: %w", price, err)
	}
	h.Price = p
	h.ChangePct = nullStringToDecimal(changePct)
	h.Volume = nullStringToDecimal(volume)
	h.PrePrice = nullStringToDecimal(prePrice)
	h.PostPrice = nullStringToDecimal(postPrice)
	return h, nil
}

func nullStringToDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &d
}

// Range returns samples for a subscription between from and to (inclusive,
// unix seconds), ordered oldest-first.
func (r *PriceHistoryRepository) Range(subscriptionID int64, from, to int64) ([]domain.PriceHistory, error) {
	rows, err := r.db.Query(`
		SELECT id, subscription_id, provider_id, price, change_pct, volume, pre_price, post_price, recorded_at
		FROM price_history
		WHERE subscription_id = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC
	`, subscriptionID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history range: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceHistory
	for rows.Next() {
		h, err := scanPriceHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// HistoryQuery filters a Query call; zero values mean "no filter" except
// Limit, which is clamped to DefaultHistoryLimit when <= 0.
type HistoryQuery struct {
	SubscriptionID *int64
	Symbol         string
	ProviderID     string
	From           *int64
	To             *int64
	Limit          int
}

// DefaultHistoryLimit is the row cap applied when a query specifies none,
// per spec.md §6.
const DefaultHistoryLimit = 1000

// Query returns samples matching every filter set on q, newest first,
// joining subscriptions when Symbol is set since symbol lives there and
// not on price_history itself. Built with the teacher's WHERE-1=1 dynamic
// filter style (see ledger handlers.HandleGetTrades).
func (r *PriceHistoryRepository) Query(q HistoryQuery) ([]domain.PriceHistory, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
		SELECT h.id, h.subscription_id, h.provider_id, h.price, h.change_pct, h.volume,
		       h.pre_price, h.post_price, h.recorded_at
		FROM price_history h`
	args := []any{}

	if q.Symbol != "" {
		query += " JOIN subscriptions s ON s.id = h.subscription_id"
	}
	query += " WHERE 1=1"

	if q.SubscriptionID != nil {
		query += " AND h.subscription_id = ?"
		args = append(args, *q.SubscriptionID)
	}
	if q.ProviderID != "" {
		query += " AND h.provider_id = ?"
		args = append(args, q.ProviderID)
	}
	if q.Symbol != "" {
		query += " AND s.symbol = ?"
		args = append(args, q.Symbol)
	}
	if q.From != nil {
		query += " AND h.recorded_at >= ?"
		args = append(args, *q.From)
	}
	if q.To != nil {
		query += " AND h.recorded_at <= ?"
		args = append(args, *q.To)
	}

	query += " ORDER BY h.recorded_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceHistory
	for rows.Next() {
		h, err := scanPriceHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price history row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes every sample recorded before cutoff (unix
// seconds), returning the number of rows removed. Used by the retention job.
func (r *PriceHistoryRepository) PurgeOlderThan(cutoff int64) (int64, error) {
	result, err := r.db.Exec("DELETE FROM price_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge price history: %w", err)
	}
	return result.RowsAffected()
}
