package streaming

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/providers"
)

// Supervisor owns the set of currently-running streaming workers, one per
// provider id, and guarantees the "starting a stream for a provider first
// aborts any previous pair for the same provider" rule from spec.md §4.4.
type Supervisor struct {
	sink events.Sink
	log  zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewSupervisor builds an empty Supervisor.
func NewSupervisor(sink events.Sink, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		sink:    sink,
		log:     log.With().Str("component", "streaming_supervisor").Logger(),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches a streaming worker for providerID/symbols, cancelling
// any prior worker already running for that provider id. Start returns
// nothing; cancellation goes through Stop or StopAll, which cancel the
// worker's context and so abort both the socket loop and the reconnect
// loop immediately, with no graceful drain.
func (s *Supervisor) Start(ctx context.Context, providerID string, streamer providers.Streamer, symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, exists := s.cancels[providerID]; exists {
		cancel()
	}

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancels[providerID] = cancel

	worker := NewWorker(providerID, streamer, symbols, s.sink, s.log)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		worker.Run(workerCtx)
	}()
}

// Stop cancels the worker for one provider id, if any.
func (s *Supervisor) Stop(providerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, exists := s.cancels[providerID]; exists {
		cancel()
		delete(s.cancels, providerID)
	}
}

// StopAll cancels every running worker and waits for them to exit.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	for id, cancel := range s.cancels {
		cancel()
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
