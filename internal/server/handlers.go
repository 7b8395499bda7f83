package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/haloboard/marketfeed/internal/domain"
	"github.com/haloboard/marketfeed/internal/events"
	"github.com/haloboard/marketfeed/internal/providers"
	"github.com/haloboard/marketfeed/internal/repository"
)

// writeJSON writes a JSON response, matching the teacher's handlers.go
// helper.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// priceEntry is one /api/prices row: the cache record plus the symbol,
// provider, and timestamp fields spec.md §6 names explicitly (duplicating
// what's already on AssetData, to keep the wire shape stable even if
// AssetData's own field names change).
type priceEntry struct {
	domain.AssetData
	Symbol    string `json:"symbol"`
	Provider  string `json:"provider"`
	Timestamp int64  `json:"timestamp"`
}

// handlePrices implements GET /api/prices: drain the cache.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	entries := s.cache.All()
	prices := make([]priceEntry, 0, len(entries))
	for _, e := range entries {
		prices = append(prices, priceEntry{
			AssetData: e.Asset,
			Symbol:    e.Symbol,
			Provider:  e.ProviderID,
			Timestamp: e.Asset.LastUpdated,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prices":    prices,
		"count":     len(prices),
		"timestamp": time.Now().UnixMilli(),
	})
}

// handlePrice implements GET /api/prices/{provider}/{symbol}: a direct
// cache lookup, 404 on miss.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	symbol := chi.URLParam(r, "symbol")

	asset, ok := s.cache.Get(provider, symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no cached price for %s:%s", provider, symbol))
		return
	}
	s.writeJSON(w, http.StatusOK, priceEntry{
		AssetData: asset,
		Symbol:    symbol,
		Provider:  provider,
		Timestamp: asset.LastUpdated,
	})
}

// handleHistory implements GET /api/history?symbol=&provider=&subscription_id=&from=&to=&limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.HistoryQuery{
		Symbol:     q.Get("symbol"),
		ProviderID: q.Get("provider"),
	}
	if raw := q.Get("subscription_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid subscription_id")
			return
		}
		filter.SubscriptionID = &id
	}
	if raw := q.Get("from"); raw != "" {
		from, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from")
			return
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid to")
			return
		}
		filter.To = &to
	}
	filter.Limit = repository.DefaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	records, err := s.priceHistory.Query(filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
		"query": map[string]any{
			"symbol":          filter.Symbol,
			"provider":        filter.ProviderID,
			"subscription_id": filter.SubscriptionID,
			"from":            filter.From,
			"to":              filter.To,
			"limit":           filter.Limit,
		},
	})
}

// handleSubscriptions implements GET /api/subscriptions.
func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.subscriptions.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": subs,
		"count":         len(subs),
	})
}

// handleViews implements GET /api/views, a supplemented read-only endpoint
// over the views/view_subscriptions tables (not in spec.md's HTTP surface,
// but the data model and read contract both already exist).
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	views, err := s.views.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"views": views,
		"count": len(views),
	})
}

// handleProviders implements GET /api/providers: the full registry
// catalog, shipped and registry-only alike, for clients building a
// provider picker.
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.factory.AllInfo(),
	})
}

// handleProviderTest implements POST /api/providers/{id}/test?symbol=...,
// a supplemented admin endpoint that exercises a provider's credentials
// on demand instead of waiting for the next scheduling generation to
// surface a construction failure.
func (s *Server) handleProviderTest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	creds := providers.Credentials{}
	if settings, err := s.providerCfg.Get(id); err == nil && settings != nil {
		creds = providers.Credentials{
			APIKey:    settings.APIKey,
			APISecret: settings.APISecret,
			APIURL:    settings.APIURL,
		}
	}

	fetcher, ok := s.factory.Create(id, creds)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("provider %s has no shipped adapter or failed to construct", id))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	asset, err := fetcher.FetchPrice(ctx, symbol)
	if err != nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "asset": asset})
}

// handleSetVisibility implements POST /api/visibility/{scope} with a JSON
// body {"subscription_ids":[...]}, the HTTP-side entry point for the
// set_visible operation spec.md §4.2 describes as coming from the GUI's
// window layer.
func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")

	var body struct {
		SubscriptionIDs []int64 `json:"subscription_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.manager.SetVisible(scope, body.SubscriptionIDs)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSetUnattended implements POST /api/unattended with a JSON body
// {"unattended": true|false}.
func (s *Server) handleSetUnattended(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Unattended bool `json:"unattended"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.manager.SetUnattended(body.Unattended)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the exact shape spec.md §4.5/§6 names for /api/status,
// plus host CPU/RAM gauges reported alongside it.
type statusResponse struct {
	Version         string                     `json:"version"`
	UnattendedMode  bool                       `json:"unattended_mode"`
	CacheSize       int                        `json:"cache_size"`
	ActiveProviders []string                   `json:"active_providers"`
	LastPollTicks   map[string]domain.PollTick `json:"last_poll_ticks"`
	CPUPercent      float64                    `json:"cpu_percent"`
	RAMPercent      float64                    `json:"ram_percent"`
}

// handleStatus implements GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := s.hostStats()

	resp := statusResponse{
		Version:         Version,
		UnattendedMode:  s.manager.IsUnattended(),
		CacheSize:       s.cache.Size(),
		ActiveProviders: s.cache.ActiveProviders(),
		LastPollTicks:   s.cache.Ticks(),
		CPUPercent:      cpuPercent,
		RAMPercent:      ramPercent,
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// hostStats samples CPU and RAM usage over a short window, short enough not
// to noticeably delay the status response.
func (s *Server) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample cpu percent")
		cpuPercent = []float64{0}
	}
	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to sample memory stats")
		return valueOrZero(cpuPercent), 0
	}
	return valueOrZero(cpuPercent), memStat.UsedPercent
}

func valueOrZero(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}

// handleEventsStream implements GET /api/events/stream: a unified
// Server-Sent Events feed over all four event kinds, grounded on the
// teacher's events_stream.go (per-client buffered channel, non-blocking
// publish, heartbeat ticker, disconnect via request context).
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := make(chan *events.Event, 100)
	handler := func(ev *events.Event) {
		select {
		case eventChan <- ev:
		default:
			s.log.Warn().Str("event_type", string(ev.Type)).Msg("events stream channel full, dropping event")
		}
	}
	for _, t := range []events.EventType{events.PriceUpdate, events.PriceError, events.PollTick, events.WsTickerUpdate} {
		s.eventBus.Subscribe(t, handler)
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev := <-eventChan:
			payload, err := json.Marshal(map[string]any{
				"type":      string(ev.Type),
				"module":    ev.Module,
				"timestamp": ev.Timestamp.Format(time.RFC3339),
				"data":      ev.Data,
			})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
