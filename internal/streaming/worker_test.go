package streaming

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/providers"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, 1000*time.Millisecond, backoff(1))
	assert.Equal(t, 2000*time.Millisecond, backoff(2))
	assert.Equal(t, 4000*time.Millisecond, backoff(3))
	// caps at base * 2^6 regardless of how far past it attempt climbs.
	assert.Equal(t, 64000*time.Millisecond, backoff(7))
	assert.Equal(t, 64000*time.Millisecond, backoff(20))
}

// fakeStreamer's Stream call count and per-call behavior is driven by a
// slice of canned errors, one per attempt; once exhausted it blocks until
// ctx is cancelled, simulating a healthy long-lived connection.
type fakeStreamer struct {
	providers.Fetcher
	attempts int32
	errs     []error
}

func (f *fakeStreamer) Stream(ctx context.Context, symbols []string, sink providers.StreamSink) error {
	n := atomic.AddInt32(&f.attempts, 1)
	if int(n) <= len(f.errs) {
		return f.errs[n-1]
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkerRunRetriesOnErrorThenStops(t *testing.T) {
	streamer := &fakeStreamer{errs: []error{fmt.Errorf("disconnect 1"), fmt.Errorf("disconnect 2")}}
	bus := events.NewBus()
	w := NewWorker("binance", streamer, []string{"BTCUSDT"}, bus, zerolog.Nop())

	// the first reconnect waits backoff(1) = 1s, so the second attempt
	// happens at ~1s; the 1.5s deadline then ends the 2s wait before it.
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&streamer.attempts)), 2)
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	streamer := &fakeStreamer{}
	bus := events.NewBus()
	w := NewWorker("binance", streamer, []string{"BTCUSDT"}, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestEventSinkPublishesWsTickerUpdate(t *testing.T) {
	bus := events.NewBus()
	var received *domain.WsTickerUpdate
	bus.Subscribe(events.WsTickerUpdate, func(ev *events.Event) {
		data := ev.Data.(events.WsTickerUpdateData)
		received = &data.Update
	})

	sink := eventSink{sink: bus}
	update := domain.WsTickerUpdate{Symbol: "BTCUSDT", ProviderID: "binance"}
	sink.PublishTicker(update)

	require.NotNil(t, received)
	assert.Equal(t, "BTCUSDT", received.Symbol)
}
