package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mailscout/config"
	"github.com/use-agent/mailscout/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(apiKeyContextKey))
	})
	return r
}

func get(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.LookupResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"key-1", "key-2"}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"x-api-key", "X-API-Key", "key-1", http.StatusOK},
		{"bearer", "Authorization", "Bearer key-2", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"basic scheme", "Authorization", "Basic key-1", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.header, tt.value)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if code := errorCode(t, w); code != models.ErrCodeUnauthorized {
					t.Errorf("code = %q", code)
				}
			}
		})
	}

	if w := get(r, "X-API-Key", "key-1"); w.Body.String() != "key-1" {
		t.Errorf("api key not stored in context: %q", w.Body.String())
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth([]string{""}))
	if w := get(r, "", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2}))

	for i := 0; i < 2; i++ {
		if w := get(r, "X-API-Key", "a"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := get(r, "X-API-Key", "a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if code := errorCode(t, w); code != models.ErrCodeRateLimited {
		t.Errorf("code = %q", code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	// Buckets are per key.
	if w := get(r, "X-API-Key", "b"); w.Code != http.StatusOK {
		t.Errorf("other key limited: status = %d", w.Code)
	}
}

func TestLimiterStore_Evict(t *testing.T) {
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	s.get("old", now.Add(-2*time.Hour))
	s.get("new", now)

	s.evict(now.Add(-1 * time.Hour))

	if _, ok := s.limiters["old"]; ok {
		t.Error("stale identity not evicted")
	}
	if _, ok := s.limiters["new"]; !ok {
		t.Error("fresh identity evicted")
	}
}
