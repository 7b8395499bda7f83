package streaming

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/haloboard/marketfeed/internal/events"
)

func TestSupervisorStartReplacesPriorWorkerForSameProvider(t *testing.T) {
	bus := events.NewBus()
	sup := NewSupervisor(bus, zerolog.Nop())

	first := &fakeStreamer{}
	second := &fakeStreamer{}

	sup.Start(context.Background(), "binance", first, []string{"BTCUSDT"})
	time.Sleep(10 * time.Millisecond)
	sup.Start(context.Background(), "binance", second, []string{"BTCUSDT"})

	sup.StopAll()

	// the first worker's context was cancelled when the second Start call
	// replaced it, so its Stream loop should have exited well before
	// StopAll returned.
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&first.attempts)), 1)
	assert.GreaterOrEqual(t, int(atomic.LoadInt32(&second.attempts)), 1)
}

func TestSupervisorStopCancelsOneProvider(t *testing.T) {
	bus := events.NewBus()
	sup := NewSupervisor(bus, zerolog.Nop())

	streamer := &fakeStreamer{}
	sup.Start(context.Background(), "binance", streamer, []string{"BTCUSDT"})
	time.Sleep(10 * time.Millisecond)

	sup.Stop("binance")
	sup.Stop("binance") // idempotent: no panic on a second Stop

	sup.StopAll()
}

func TestSupervisorStopAllWaitsForWorkers(t *testing.T) {
	bus := events.NewBus()
	sup := NewSupervisor(bus, zerolog.Nop())

	sup.Start(context.Background(), "binance", &fakeStreamer{}, []string{"BTCUSDT"})
	sup.Start(context.Background(), "kraken", &fakeStreamer{}, []string{"XBTUSD"})

	done := make(chan struct{})
	go func() {
		sup.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not return")
	}
}
