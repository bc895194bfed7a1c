package rest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/moderation"
	"github.com/robalyx/guardian/internal/rest"
	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubModerator struct{}

func (stubModerator) ModerateText(context.Context, string) (*moderation.Result, error) {
	return &moderation.Result{Flagged: true, Reason: "Spam"}, nil
}

func (stubModerator) ModerateImage(context.Context, []byte) (*moderation.Result, error) {
	return &moderation.Result{}, nil
}

func (stubModerator) ModerateVideo(context.Context, []byte, string) (*moderation.Result, error) {
	return &moderation.Result{}, nil
}

type stubFlagger struct{}

func (stubFlagger) Flag(context.Context, int64) (*trust.FlagResult, error) {
	return nil, types.ErrUserNotFound
}

type stubUsers struct{}

func (stubUsers) GetUser(context.Context, int64) (*types.User, error) {
	return nil, types.ErrUserNotFound
}

type stubLogs struct{}

func (stubLogs) GetLogs(
	context.Context, types.ActivityFilter, *types.LogCursor, int,
) ([]*types.AuditLog, *types.LogCursor, error) {
	return nil, nil, nil
}

func newServer(t *testing.T, checks ...rest.HealthCheck) http.Handler {
	t.Helper()

	cfg := &config.ServerConfig{
		RequestTimeout:  1000,
		MaxImageSize:    1024,
		MaxVideoSize:    1024,
		MaxLogsPageSize: 100,
		RateLimit: config.RateLimit{
			RequestsPerSecond: 100,
			BurstSize:         100,
			StrikeLimit:       10,
			BlockDuration:     60,
		},
	}

	h, cleanup := rest.NewServer(&rest.Dependencies{
		Moderator: stubModerator{},
		Flagger:   stubFlagger{},
		Users:     stubUsers{},
		Logs:      stubLogs{},
		Checks:    checks,
	}, cfg, zap.NewNop())
	t.Cleanup(cleanup)

	return h
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	h := newServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"moderate text", http.MethodPost, "/v1/moderate/text", `{"text":"buy now"}`, http.StatusOK},
		{"flag unknown user", http.MethodPut, "/v1/moderate/flag", `{"userId":5}`, http.StatusNotFound},
		{"list logs", http.MethodGet, "/v1/moderate/logs", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/v1/moderate/unknown", "", http.StatusNotFound},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServerSetsRequestID(t *testing.T) {
	t.Parallel()

	h := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/moderate/text", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"reason":"Spam"`)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		h := newServer(t, rest.HealthCheck{Name: "database", Check: func(context.Context) error { return nil }})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	})

	t.Run("failing dependency", func(t *testing.T) {
		t.Parallel()

		h := newServer(t,
			rest.HealthCheck{Name: "database", Check: func(context.Context) error { return nil }},
			rest.HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
		assert.Contains(t, rec.Body.String(), `"redis":"connection refused"`)
	})
}
