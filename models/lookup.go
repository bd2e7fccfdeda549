package models

// LookupRequest is the payload for POST /api/v1/emails.
type LookupRequest struct {
	// Domain is the organization's domain, with or without "www.". Required.
	Domain string `json:"domain" binding:"required"`

	// MaxAge allows serving a cached response younger than this many
	// milliseconds. 0 disables the cache for this request.
	MaxAge int `json:"max_age_ms,omitempty" binding:"omitempty,min=0"`
}

// LookupResponse is the response for POST /api/v1/emails and the
// per-domain entry of a batch job.
type LookupResponse struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`

	// Emails are the addresses of the best non-empty tier, sorted.
	Emails []string `json:"emails"`

	// Tier is "prioritized" or "other"; empty when nothing was found.
	Tier string `json:"tier,omitempty"`

	// Result is Emails joined by single spaces.
	Result string `json:"result"`

	PagesVisited int `json:"pages_visited"`
	Failures     int `json:"failures"`

	CacheStatus string       `json:"cache_status,omitempty"`
	Timing      TimingInfo   `json:"timing"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo provides duration breakdowns for the operation.
type TimingInfo struct {
	TotalMs int64 `json:"total_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	ActiveLookups int    `json:"active_lookups"`
	MaxLookups    int    `json:"max_lookups"`
	OpenBrowsers  int    `json:"open_browsers"`
	Version       string `json:"version"`
}
