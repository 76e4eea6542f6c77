package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xlogger "MarketPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	full   bool
	closed bool
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) SendBytes(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, b)
	return true
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func TestHubRoutesByAsset(t *testing.T) {
	h := NewHub(2, nil)
	a, b := &fakeSub{id: "a"}, &fakeSub{id: "b"}

	assert.Equal(t, []string{"BTC", "ETH"}, h.Subscribe(a, []string{"btc", "eth", "BTC", "sol"}))
	h.Subscribe(b, []string{"ETH"})
	assert.Equal(t, 2, h.Subscribers("eth"))
	assert.Equal(t, 0, h.Subscribers("sol"))

	h.OnSummary(models.IntelligenceSummary{Asset: "BTC", FinalSummary: "x"})
	h.OnSummary(models.IntelligenceSummary{Asset: "ETH"})
	assert.Len(t, a.frames, 2)
	assert.Len(t, b.frames, 1)

	var msg Message
	require.NoError(t, json.Unmarshal(a.frames[0], &msg))
	assert.Equal(t, "intelligence", msg.Type)

	h.Unregister(a)
	assert.Equal(t, 0, h.Subscribers("BTC"))
	assert.Equal(t, 1, h.Subscribers("ETH"))

	h.Close()
	assert.True(t, b.closed)
	assert.Equal(t, 0, h.Subscribers("ETH"))
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(5, nil)
	slow := &fakeSub{id: "slow", full: true}
	h.Subscribe(slow, []string{"BTC"})
	h.OnSummary(models.IntelligenceSummary{Asset: "BTC"})
	assert.Empty(t, slow.frames)
}

type snapshotStub map[string]models.IntelligenceSummary

func (s snapshotStub) GetCached(key string) usecase.Lookup[models.IntelligenceSummary] {
	if v, ok := s[key]; ok {
		return usecase.Lookup[models.IntelligenceSummary]{Key: key, Payload: v, Status: usecase.StatusHit}
	}
	return usecase.Lookup[models.IntelligenceSummary]{Key: key, Status: usecase.StatusPending}
}

func TestWebsocketReceivesSnapshotThenUpdates(t *testing.T) {
	hub := NewHub(10, nil)
	defer hub.Close()
	snaps := snapshotStub{"BTC": {Asset: "BTC", FinalSummary: "cached"}}

	e := echo.New()
	NewHandler(hub, snaps, nil, xlogger.NewNop()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/intelligence?assets=btc,eth"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSummary := func() models.IntelligenceSummary {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame struct {
			Type string                     `json:"type"`
			Data models.IntelligenceSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(b, &frame))
		return frame.Data
	}

	assert.Equal(t, "cached", readSummary().FinalSummary)

	require.Eventually(t, func() bool { return hub.Subscribers("ETH") == 1 }, time.Second, 5*time.Millisecond)
	hub.OnSummary(models.IntelligenceSummary{Asset: "ETH", FinalSummary: "fresh"})
	got := readSummary()
	assert.Equal(t, "ETH", got.Asset)
	assert.Equal(t, "fresh", got.FinalSummary)
}

func TestWebsocketRequiresAssets(t *testing.T) {
	e := echo.New()
	NewHandler(NewHub(1, nil), snapshotStub{}, nil, xlogger.NewNop()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/intelligence"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
