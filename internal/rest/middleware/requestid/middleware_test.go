package requestid_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/robalyx/guardian/internal/rest/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	m := requestid.New(zap.NewNop())

	var seen string
	router := bunrouter.New(bunrouter.Use(m.AsRESTMiddleware))
	router.GET("/", func(w http.ResponseWriter, req bunrouter.Request) error {
		seen = requestid.FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
		return nil
	})

	// Generated when absent
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(requestid.Header))

	// Propagated when valid
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, id)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, seen)

	// Replaced when malformed
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, "<script>")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)
	assert.Empty(t, requestid.FromContext(t.Context()))
}
