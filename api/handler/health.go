package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mailscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// BrowserCounter reports how many browser processes are running.
// *browser.Factory implements it.
type BrowserCounter interface {
	Active() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when every lookup slot is busy.
func Health(lim *Limiter, browsers BrowserCounter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, max := lim.Active(), lim.Max()

		status := "healthy"
		if max > 0 && active >= max {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			ActiveLookups: active,
			MaxLookups:    max,
			OpenBrowsers:  browsers.Active(),
			Version:       Version,
		})
	}
}
