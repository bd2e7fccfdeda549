package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mailscout/cache"
	"github.com/use-agent/mailscout/finder"
	"github.com/use-agent/mailscout/metrics"
	"github.com/use-agent/mailscout/models"
)

// Looker runs one domain lookup. *finder.Finder implements it.
type Looker interface {
	Lookup(ctx context.Context, domain string) (*finder.Result, error)
}

// Lookup returns a handler for POST /api/v1/emails.
//
// Orchestration flow:
//  1. Parse & validate request.
//  2. Serve from cache when max_age_ms allows it.
//  3. Run the lookup (bounded by the Limiter's slot and timeout).
//  4. Fill Timing, store in cache, return 200.
func Lookup(lk Looker, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.LookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.LookupResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		domain := strings.TrimSpace(req.Domain)

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cache.Key(domain), req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Lookup ───────────────────────────────────────────────
		resp := lookupOne(c.Request.Context(), lk, domain)
		resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}

		if resp.Error != nil {
			c.JSON(mapErrorToStatus(resp.Error.Code), resp)
			return
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cache.Key(domain), resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// lookupOne runs a lookup and converts its outcome into a response.
// A partial result interrupted by the deadline keeps its addresses.
func lookupOne(ctx context.Context, lk Looker, domain string) *models.LookupResponse {
	start := time.Now()
	res, err := lk.Lookup(ctx, domain)

	resp := &models.LookupResponse{
		Success: err == nil,
		Domain:  domain,
		Emails:  []string{},
		Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	}
	if res != nil {
		resp.Domain = res.Domain
		resp.PagesVisited = res.PagesVisited
		resp.Failures = res.Failures
		if res.Found() {
			resp.Emails = res.Emails
			resp.Tier = res.Tier.String()
			resp.Result = res.String()
		}
	}
	if err != nil {
		var le *models.LookupError
		if !errors.As(err, &le) {
			le = models.NewLookupError(models.ErrCodeInternal, err.Error(), err)
		}
		resp.Error = le.ToDetail()
	}

	outcome := metrics.OutcomeEmpty
	switch {
	case resp.Error != nil:
		outcome = resp.Error.Code
	case resp.Result != "":
		outcome = metrics.OutcomeFound
	}
	metrics.ObserveLookup(outcome, time.Since(start), resp.PagesVisited, resp.Failures)
	return resp
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
