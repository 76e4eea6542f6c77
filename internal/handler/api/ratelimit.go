package api

import (
	"net/http"

	"MarketPulse/internal/service/ratelimit"
	xhttp "MarketPulse/pkg/http"
	xlogger "MarketPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RateLimit throttles each client IP with its own token bucket.
func RateLimit(rl *ratelimit.Limiter, l *xlogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.Allow("ip:" + ip) {
				l.Warn("api.rate_limited", xlogger.String("remote", ip), xlogger.String("path", c.Path()))
				c.Response().Header().Set("Retry-After", "1")
				return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "rate limited", http.StatusTooManyRequests))
			}
			return next(c)
		}
	}
}
