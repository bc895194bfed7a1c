package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/guardian/internal/rest/middleware/ip"
	"github.com/robalyx/guardian/internal/rest/middleware/ratelimit"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRouter(t *testing.T, cfg *config.RateLimit) (*bunrouter.Router, *clock) {
	t.Helper()

	m := ratelimit.New(cfg, zap.NewNop())
	t.Cleanup(m.Close)

	c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.SetClock(c.Now)

	setIP := func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			return next(w, req.WithContext(ip.WithIP(req.Context(), req.Header.Get("X-Test-IP"))))
		}
	}

	router := bunrouter.New(bunrouter.Use(setIP, m.AsRESTMiddleware))
	router.GET("/", func(w http.ResponseWriter, _ bunrouter.Request) error {
		w.WriteHeader(http.StatusOK)
		return nil
	})

	return router, c
}

func do(router http.Handler, clientIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Test-IP", clientIP)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBurst(t *testing.T) {
	t.Parallel()

	router, c := newRouter(t, &config.RateLimit{
		RequestsPerSecond: 1, BurstSize: 2, StrikeLimit: 10, BlockDuration: 60,
	})

	assert.Equal(t, http.StatusOK, do(router, "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, do(router, "198.51.100.1").Code)

	rec := do(router, "198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Other clients have their own bucket
	assert.Equal(t, http.StatusOK, do(router, "198.51.100.2").Code)

	// Tokens refill over time
	c.Advance(time.Second)
	assert.Equal(t, http.StatusOK, do(router, "198.51.100.1").Code)
}

func TestRateLimitBlocksAfterStrikes(t *testing.T) {
	t.Parallel()

	router, c := newRouter(t, &config.RateLimit{
		RequestsPerSecond: 1, BurstSize: 1, StrikeLimit: 2, BlockDuration: 30,
	})

	require.Equal(t, http.StatusOK, do(router, "203.0.113.5").Code)
	require.Equal(t, http.StatusTooManyRequests, do(router, "203.0.113.5").Code)

	rec := do(router, "203.0.113.5")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "temporarily blocked")

	// Still blocked after the bucket refills
	c.Advance(5 * time.Second)
	rec = do(router, "203.0.113.5")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "25", rec.Header().Get("Retry-After"))

	// Unblocked once the block expires
	c.Advance(26 * time.Second)
	assert.Equal(t, http.StatusOK, do(router, "203.0.113.5").Code)
}
