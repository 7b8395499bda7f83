// Package history writes de-duplicated price samples to persistent
// storage, gated by per-subscription and per-provider time-of-day
// recording windows.
package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/repository"
)

const dedupWindow = 5 * time.Second

// Recorder is invoked on every successful worker batch for the symbols
// that have recording enabled. All writes go through the repository layer
// on the caller's goroutine; failures are logged and swallowed per
// spec.md §4.3 — a missed sample is acceptable, a panic or a hard error
// that stops polling is not.
type Recorder struct {
	subscriptions *repository.SubscriptionsRepository
	providerCfg   *repository.ProviderSettingsRepository
	priceHistory  *repository.PriceHistoryRepository
	log           zerolog.Logger
}

// NewRecorder builds a Recorder bound to the three repositories it reads
// and writes.
func NewRecorder(
	subscriptions *repository.SubscriptionsRepository,
	providerCfg *repository.ProviderSettingsRepository,
	priceHistory *repository.PriceHistoryRepository,
	log zerolog.Logger,
) *Recorder {
	return &Recorder{
		subscriptions: subscriptions,
		providerCfg:   providerCfg,
		priceHistory:  priceHistory,
		log:           log.With().Str("component", "history_recorder").Logger(),
	}
}

// Record implements spec.md §4.3's five steps for one produced AssetData:
// resolve the subscription, compute and check the recording window,
// dedup against the last row, then insert.
func (r *Recorder) Record(ctx context.Context, subscriptionID int64, asset domain.AssetData) {
	sub, err := r.subscriptions.Get(subscriptionID)
	if err != nil {
		r.log.Warn().Err(err).Int64("subscription_id", subscriptionID).Msg("failed to load subscription for recording")
		return
	}
	if sub == nil {
		return
	}

	fromHour, toHour, ok := r.effectiveWindow(*sub)
	if ok && !inWindow(fromHour, toHour, time.Now()) {
		return
	}

	lastAt, err := r.priceHistory.LastRecordedAt(subscriptionID)
	if err != nil {
		r.log.Warn().Err(err).Int64("subscription_id", subscriptionID).Msg("failed to read last recorded time")
		return
	}
	now := time.Now().Unix()
	if lastAt > 0 && now-lastAt < int64(dedupWindow.Seconds()) {
		return
	}

	row := domain.PriceHistory{
		SubscriptionID: subscriptionID,
		ProviderID:     asset.ProviderID,
		Price:          asset.Price,
		ChangePct:      asset.ChangePercent24h,
		Volume:         asset.Volume,
		RecordedAt:     now,
	}
	if pre, ok := asset.ExtraDecimal("pre_market_price"); ok {
		row.PrePrice = &pre
	}
	if post, ok := asset.ExtraDecimal("post_market_price"); ok {
		row.PostPrice = &post
	}

	if _, err := r.priceHistory.Insert(row); err != nil {
		r.log.Warn().Err(err).Int64("subscription_id", subscriptionID).Msg("failed to insert price history row")
	}
}

// effectiveWindow resolves the recording window with the precedence
// subscription window -> provider window -> full day per spec.md §4.3.
// ok is false when the effective window is the full day, in which case
// the caller skips the hour check entirely.
func (r *Recorder) effectiveWindow(sub domain.Subscription) (fromHour, toHour int, ok bool) {
	if sub.RecordFromHour != nil && sub.RecordToHour != nil {
		return *sub.RecordFromHour, *sub.RecordToHour, true
	}

	settings, err := r.providerCfg.Get(sub.SelectedProviderID)
	if err != nil || settings == nil {
		return 0, 24, false
	}
	if settings.RecordFromHour != nil && settings.RecordToHour != nil {
		return *settings.RecordFromHour, *settings.RecordToHour, true
	}
	return 0, 24, false
}

// inWindow reports whether t's local hour falls in [from, to) for a
// same-day window, or in [from, 24) ∪ [0, to) for an overnight window
// where from > to, per spec.md §4.3.
func inWindow(from, to int, t time.Time) bool {
	hour := t.Local().Hour()
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}
