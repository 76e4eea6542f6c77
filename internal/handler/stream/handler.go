package stream

import (
	"encoding/json"
	"net/http"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/usecase"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type SnapshotReader interface {
	GetCached(key string) usecase.Lookup[models.IntelligenceSummary]
}

// Handler upgrades /ws/intelligence connections and registers them with the hub.
type Handler struct {
	hub       *Hub
	snapshots SnapshotReader
	upgrader  websocket.Upgrader
	l         *xlogger.Logger
}

// NewHandler allows any origin when origins is empty.
func NewHandler(hub *Hub, snapshots SnapshotReader, origins []string, l *xlogger.Logger) *Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub:       hub,
		snapshots: snapshots,
		l:         l,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/intelligence", h.Intelligence)
}

// Intelligence subscribes to ?assets=BTC,ETH. Currently cached summaries are
// sent first, then every refresh as it is stored.
func (h *Handler) Intelligence(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	assets := util.SplitCSV(req.Assets)
	if len(assets) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("assets must list at least one asset"))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("stream.upgrade", xlogger.Error(err))
		return nil
	}

	client := newClient(conn, h.hub, h.l)
	subscribed := h.hub.Subscribe(client, assets)
	h.l.Info("stream.subscribed", xlogger.String("client", client.ID()), xlogger.Strings("assets", subscribed))

	for _, asset := range subscribed {
		res := h.snapshots.GetCached(asset)
		if !res.Hit() {
			continue
		}
		if b, err := json.Marshal(Message{Type: typeIntelligence, Data: res.Payload}); err == nil {
			client.SendBytes(b)
		}
	}
	client.start()
	return nil
}
