package stream

import (
	"encoding/json"
	"sync"

	"MarketPulse/internal/domain/models"
	xlogger "MarketPulse/pkg/logger"
)

// Message is the frame pushed to subscribers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const typeIntelligence = "intelligence"

// subscriber is the hub's view of a connected client.
type subscriber interface {
	ID() string
	SendBytes(b []byte) bool
	Close()
}

// Hub fans stored summaries out to the clients subscribed to their asset.
type Hub struct {
	mu         sync.RWMutex
	byAsset    map[string]map[subscriber]struct{}
	bySub      map[subscriber][]string
	maxPerConn int
	l          *xlogger.Logger
}

func NewHub(maxAssetsPerConn int, l *xlogger.Logger) *Hub {
	if maxAssetsPerConn <= 0 {
		maxAssetsPerConn = 20
	}
	if l == nil {
		l = xlogger.NewNop()
	}
	return &Hub{
		byAsset:    make(map[string]map[subscriber]struct{}),
		bySub:      make(map[subscriber][]string),
		maxPerConn: maxAssetsPerConn,
		l:          l,
	}
}

// Subscribe registers s for the given assets and returns the normalized,
// deduplicated list actually subscribed.
func (h *Hub) Subscribe(s subscriber, assets []string) []string {
	keys := models.BuildTargets(assets, "")
	if len(keys) > h.maxPerConn {
		keys = keys[:h.maxPerConn]
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(keys))
	for _, t := range keys {
		set := h.byAsset[t.Key]
		if set == nil {
			set = make(map[subscriber]struct{})
			h.byAsset[t.Key] = set
		}
		set[s] = struct{}{}
		out = append(out, t.Key)
	}
	h.bySub[s] = append(h.bySub[s], out...)
	return out
}

// Unregister drops every subscription held by s.
func (h *Hub) Unregister(s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, asset := range h.bySub[s] {
		if set := h.byAsset[asset]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.byAsset, asset)
			}
		}
	}
	delete(h.bySub, s)
}

// Subscribers counts clients subscribed to asset.
func (h *Hub) Subscribers(asset string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byAsset[models.NormalizeAsset(asset)])
}

// OnSummary pushes a freshly stored summary. Slow clients miss frames
// instead of stalling the refresh pipeline.
func (h *Hub) OnSummary(s models.IntelligenceSummary) {
	b, err := json.Marshal(Message{Type: typeIntelligence, Data: s})
	if err != nil {
		h.l.Error("stream.encode", xlogger.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]subscriber, 0, len(h.byAsset[s.Asset]))
	for sub := range h.byAsset[s.Asset] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if !sub.SendBytes(b) {
			h.l.Debug("stream.dropped", xlogger.String("client", sub.ID()), xlogger.String("asset", s.Asset))
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]subscriber, 0, len(h.bySub))
	for s := range h.bySub {
		subs = append(subs, s)
	}
	h.byAsset = make(map[string]map[subscriber]struct{})
	h.bySub = make(map[subscriber][]string)
	h.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}
