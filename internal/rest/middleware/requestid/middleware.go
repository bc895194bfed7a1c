package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Header carries the request ID on requests and responses.
const Header = "X-Request-ID"

type requestIDCtxKey struct{}

// FromContext retrieves the request ID from context.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// Middleware assigns every request an ID and logs its completion.
type Middleware struct {
	logger *zap.Logger
}

// New creates a new request ID middleware.
func New(logger *zap.Logger) *Middleware {
	return &Middleware{
		logger: logger.Named("request"),
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler that tags requests with an ID.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		id := req.Header.Get(Header)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		ctx := context.WithValue(req.Context(), requestIDCtxKey{}, id)

		err := next(w, req.WithContext(ctx))
		if err != nil {
			m.logger.Error("Request failed",
				zap.String("requestID", id),
				zap.String("method", req.Method),
				zap.String("route", req.Route()),
				zap.Error(err))
		} else {
			m.logger.Debug("Request handled",
				zap.String("requestID", id),
				zap.String("method", req.Method),
				zap.String("route", req.Route()))
		}

		return err
	}
}
