package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	xhttp "MarketPulse/pkg/http"

	"github.com/labstack/echo/v4"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// CacheStat lists the valid keys of one freshness cache.
type CacheStat interface {
	Name() string
	Keys() []string
}

type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Caches map[string]int    `json:"caches,omitempty"`
}

type HealthHandler struct {
	probes  map[string]Probe
	caches  []CacheStat
	timeout time.Duration
}

func NewHealthHandler(probes map[string]Probe, caches ...CacheStat) *HealthHandler {
	return &HealthHandler{probes: probes, caches: caches, timeout: 2 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Liveness)
	e.GET("/readyz", h.Readiness)
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return xhttp.SuccessResponse(c, HealthReport{Status: "ok", Caches: h.cacheSizes()})
}

// Readiness fails with 503 when any probe fails. Caches being empty is not a
// failure; the read path serves pending payloads until they fill.
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	report := HealthReport{Status: "ok", Checks: map[string]string{}, Caches: h.cacheSizes()}
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.probes[name](ctx); err != nil {
			report.Checks[name] = err.Error()
			report.Status = "degraded"
			continue
		}
		report.Checks[name] = "ok"
	}
	if report.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, report)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *HealthHandler) cacheSizes() map[string]int {
	out := make(map[string]int, len(h.caches))
	for _, c := range h.caches {
		out[c.Name()] = len(c.Keys())
	}
	return out
}
