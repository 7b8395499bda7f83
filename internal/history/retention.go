package history

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/repository"
)

// DefaultRetentionDays is the default age at which price_history rows are
// purged, per spec.md §4.3.
const DefaultRetentionDays = 90

// RetentionJob deletes price_history rows older than RetentionDays. It
// implements scheduler.Job so it can be registered on a daily cron
// schedule.
type RetentionJob struct {
	priceHistory   *repository.PriceHistoryRepository
	retentionDays  int
	log            zerolog.Logger
}

// NewRetentionJob builds a RetentionJob. retentionDays <= 0 falls back to
// DefaultRetentionDays.
func NewRetentionJob(priceHistory *repository.PriceHistoryRepository, retentionDays int, log zerolog.Logger) *RetentionJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &RetentionJob{
		priceHistory:  priceHistory,
		retentionDays: retentionDays,
		log:           log.With().Str("component", "history_retention").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *RetentionJob) Name() string { return "history_retention" }

// Run implements scheduler.Job: purge every row older than the retention
// window.
func (j *RetentionJob) Run() error {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays).Unix()
	removed, err := j.priceHistory.PurgeOlderThan(cutoff)
	if err != nil {
		return err
	}
	j.log.Info().Int64("removed", removed).Int("retention_days", j.retentionDays).Msg("purged expired price history")
	return nil
}
