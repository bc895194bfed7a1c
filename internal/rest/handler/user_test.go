package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/robalyx/guardian/internal/database/types"
	"github.com/robalyx/guardian/internal/database/types/enum"
	"github.com/robalyx/guardian/internal/rest/handler"
	restTypes "github.com/robalyx/guardian/internal/rest/types"
	"github.com/robalyx/guardian/internal/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type fakeFlagger struct {
	result *trust.FlagResult
	err    error
	gotID  int64
}

func (f *fakeFlagger) Flag(_ context.Context, userID int64) (*trust.FlagResult, error) {
	f.gotID = userID
	return f.result, f.err
}

type fakeUsers struct {
	user *types.User
	err  error
}

func (f *fakeUsers) GetUser(_ context.Context, _ int64) (*types.User, error) {
	return f.user, f.err
}

func newUserRouter(flagger handler.Flagger, users handler.UserGetter) *bunrouter.Router {
	h := handler.NewUserHandler(flagger, users, zap.NewNop())

	router := bunrouter.New()
	router.PUT("/flag", h.FlagUser)
	return router
}

func flagRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPut, "/flag", strings.NewReader(body))
}

func TestFlagUser(t *testing.T) {
	t.Parallel()

	updatedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	users := &fakeUsers{user: &types.User{ID: 42, Username: "alice", FlagCount: 1, UpdatedAt: updatedAt}}

	t.Run("first flag increments", func(t *testing.T) {
		t.Parallel()

		flagger := &fakeFlagger{result: &trust.FlagResult{
			Record: trust.Record{UserID: 42, FlagCount: 1},
			Entry:  trust.AuditEntry{UserID: 42, Activity: enum.ActivityTypeFlagged},
		}}

		rec := serve(newUserRouter(flagger, users), flagRequest(`{"userId":42}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[restTypes.FlagUserResponse](t, rec)
		assert.Equal(t, "User flagged successfully", body.Message)
		require.NotNil(t, body.User)
		assert.Equal(t, int64(42), body.User.ID)
		assert.Equal(t, "alice", body.User.Username)
		assert.Equal(t, 1, body.User.FlagCount)
		assert.False(t, body.User.Banned)
		assert.Equal(t, int64(42), flagger.gotID)
	})

	t.Run("threshold bans", func(t *testing.T) {
		t.Parallel()

		flagger := &fakeFlagger{result: &trust.FlagResult{
			Record: trust.Record{UserID: 42, FlagCount: 1, Banned: true},
			Entry:  trust.AuditEntry{UserID: 42, Activity: enum.ActivityTypeBanned},
		}}

		rec := serve(newUserRouter(flagger, users), flagRequest(`{"userId":"42"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[restTypes.FlagUserResponse](t, rec)
		assert.Equal(t, "User has been banned", body.Message)
		assert.True(t, body.User.Banned)
		assert.Equal(t, 1, body.User.FlagCount)
	})

	t.Run("banned user is flagged again", func(t *testing.T) {
		t.Parallel()

		flagger := &fakeFlagger{result: &trust.FlagResult{
			Record:    trust.Record{UserID: 42, FlagCount: 2, Banned: true},
			Entry:     trust.AuditEntry{UserID: 42, Activity: enum.ActivityTypeBanned},
			WasBanned: true,
		}}

		rec := serve(newUserRouter(flagger, users), flagRequest(`{"userId":42}`))

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[restTypes.FlagUserResponse](t, rec)
		assert.Equal(t, "User has been banned", body.Message)
		assert.True(t, body.User.Banned)
		assert.Equal(t, 2, body.User.FlagCount)
	})

	t.Run("error mapping", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			err  error
			want int
		}{
			{"unknown user", types.ErrUserNotFound, http.StatusNotFound},
			{"store failure", errors.New("connection reset"), http.StatusInternalServerError},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				flagger := &fakeFlagger{err: tt.err}
				rec := serve(newUserRouter(flagger, users), flagRequest(`{"userId":7}`))

				assert.Equal(t, tt.want, rec.Code)
			})
		}
	})

	t.Run("invalid ids are rejected before flagging", func(t *testing.T) {
		t.Parallel()

		bodies := []string{
			`{}`,
			`{"userId":null}`,
			`{"userId":0}`,
			`{"userId":-3}`,
			`{"userId":1.5}`,
			`{"userId":"abc"}`,
			`{"userId":true}`,
			`not json`,
		}

		for _, body := range bodies {
			flagger := &fakeFlagger{}
			rec := serve(newUserRouter(flagger, users), flagRequest(body))

			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Zero(t, flagger.gotID, body)
		}
	})

	t.Run("large ids keep precision", func(t *testing.T) {
		t.Parallel()

		flagger := &fakeFlagger{result: &trust.FlagResult{
			Entry: trust.AuditEntry{Activity: enum.ActivityTypeFlagged},
		}}

		rec := serve(newUserRouter(flagger, users), flagRequest(`{"userId":9007199254740993}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(9007199254740993), flagger.gotID)
	})
}
