// Package streaming owns the generic WebSocket reconnect policy: each
// Worker repeatedly calls one provider's single-attempt Stream method,
// backing off between attempts, until it either succeeds indefinitely or
// exhausts its reconnect budget.
package streaming

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/providers"
)

const (
	maxReconnectAttempts = 10
	baseReconnectDelay   = 1000 * time.Millisecond
	maxBackoffDoublings  = 6 // backoff caps at base * 2^6 ≈ 64s
)

// Worker is the per-provider streaming task pair described in spec.md
// §4.4: an upstream task (held inside Run, owns the socket via Stream)
// and implicit forwarding to the event sink through the StreamSink the
// manager supplies. Starting a new Worker for a provider that already has
// one running is the caller's responsibility to prevent (by cancelling
// the previous context first), matching "starting a stream for a
// provider first aborts any previous pair for the same provider."
type Worker struct {
	providerID string
	streamer   providers.Streamer
	symbols    []string
	sink       events.Sink
	log        zerolog.Logger
}

// NewWorker builds a Worker bound to one provider's Streamer and symbol
// set.
func NewWorker(providerID string, streamer providers.Streamer, symbols []string, sink events.Sink, log zerolog.Logger) *Worker {
	return &Worker{
		providerID: providerID,
		streamer:   streamer,
		symbols:    symbols,
		sink:       sink,
		log:        log.With().Str("component", "streaming_worker").Str("provider", providerID).Logger(),
	}
}

// eventSink adapts Worker to providers.StreamSink, republishing every
// parsed ticker update onto the event bus as ws-ticker-update.
type eventSink struct {
	sink events.Sink
}

func (s eventSink) PublishTicker(update domain.WsTickerUpdate) {
	s.sink.Publish(events.WsTickerUpdate, "streaming_worker", events.WsTickerUpdateData{Update: update})
}

// Run blocks until ctx is cancelled or the reconnect budget is exhausted.
// It owns the reconnect policy per spec.md §4.4: up to 10 attempts,
// backoff `1000ms * 2^min(n,6)`, doubling each attempt.
//
// This is deliberately not the adapter's job — every adapter's Stream
// method handles exactly one connection attempt and returns on
// disconnect; centralizing the retry loop here keeps the backoff policy
// uniform across all streaming-capable providers instead of duplicated
// fifteen times.
func (w *Worker) Run(ctx context.Context) {
	sink := eventSink{sink: w.sink}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		connID := uuid.NewString()
		w.log.Debug().Str("connection_id", connID).Int("attempt", attempt+1).Msg("opening stream connection")
		err := w.streamer.Stream(ctx, w.symbols, sink)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// Stream returned cleanly (orderly close): treat like a
			// disconnect and attempt to resume, resetting the attempt
			// counter since the prior connection was healthy.
			attempt = 0
			continue
		}

		attempt++
		if attempt > maxReconnectAttempts {
			w.log.Warn().Int("attempts", attempt-1).Msg("reconnect budget exhausted; streaming worker terminating")
			return
		}

		delay := backoff(attempt)
		w.log.Info().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("stream disconnected; reconnecting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// backoff computes 1000ms * 2^min(attempt-1, 6), the sequence spec.md §8
// property 8 names.
func backoff(attempt int) time.Duration {
	doublings := attempt - 1
	if doublings > maxBackoffDoublings {
		doublings = maxBackoffDoublings
	}
	return time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(doublings)))
}
