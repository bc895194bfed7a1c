package ip

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/robalyx/guardian/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

type (
	ipCtxKey struct{}
)

// UnknownIP is returned when no valid IP can be determined.
const UnknownIP = "unknown"

// FromContext retrieves the client IP from the context.
func FromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipCtxKey{}).(string); ok {
		return ip
	}
	return UnknownIP
}

// WithIP stores the client IP in the context.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipCtxKey{}, ip)
}

// Middleware handles IP detection and stores it in the context.
type Middleware struct {
	checker *Checker
	logger  *zap.Logger
	config  *config.IPConfig
}

// New creates a new IP middleware.
func New(logger *zap.Logger, config *config.IPConfig) *Middleware {
	logger = logger.Named("ip")
	return &Middleware{
		checker: NewChecker(logger, config),
		logger:  logger,
		config:  config,
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for IP detection in REST server.
func (m *Middleware) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		ip := m.ClientIP(req.Request)
		if ip == UnknownIP {
			http.Error(w, "Invalid IP address", http.StatusForbidden)
			return nil
		}

		// Store IP in context for handlers
		return next(w, req.WithContext(WithIP(req.Context(), ip)))
	}
}

// ClientIP extracts the client IP from the request.
func (m *Middleware) ClientIP(r *http.Request) string {
	remoteIP := m.getRemoteIP(r.RemoteAddr)
	if remoteIP == nil {
		m.logger.Debug("Failed to get valid remote IP", zap.String("addr", r.RemoteAddr))
		return UnknownIP
	}

	// If header checking is disabled, use remote address directly
	if !m.config.EnableHeaderCheck {
		return m.useRemoteIP(remoteIP)
	}

	// If remote IP is a trusted proxy, check headers
	if m.checker.IsTrustedProxy(remoteIP) {
		if ip := m.getIPFromHeaders(r.Header); ip != UnknownIP {
			m.logger.Debug("Found valid IP in headers", zap.String("ip", ip))
			return ip
		}
		m.logger.Debug("No valid IP found in headers")
	}

	return m.useRemoteIP(remoteIP)
}

// useRemoteIP validates and returns the remote IP.
func (m *Middleware) useRemoteIP(remoteIP net.IP) string {
	if m.checker.IsValidClientIP(remoteIP) {
		return remoteIP.String()
	}
	m.logger.Debug("Remote IP is not a valid client IP", zap.String("ip", remoteIP.String()))
	return UnknownIP
}

// getRemoteIP parses the host part of the remote address.
func (m *Middleware) getRemoteIP(remoteAddr string) net.IP {
	if remoteAddr == "" {
		return nil
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	return net.ParseIP(host)
}

// getIPFromHeaders attempts to get a valid IP from the configured headers.
func (m *Middleware) getIPFromHeaders(header http.Header) string {
	for _, h := range m.config.CustomHeaders {
		value := header.Get(h)
		if value == "" {
			continue
		}

		// Handle forwarded headers differently
		if strings.Contains(h, "Forward") {
			if validated := m.getForwardedIP(value); validated != UnknownIP {
				return validated
			}
		} else if validated := m.checker.ValidateIP(value); validated != UnknownIP {
			return validated
		}

		m.logger.Debug("IP validation failed",
			zap.String("header", h),
			zap.String("value", value))
	}
	return UnknownIP
}

// getForwardedIP returns the right-most address of a forwarded chain that is
// not itself a trusted proxy.
func (m *Middleware) getForwardedIP(forwarded string) string {
	ips := strings.Split(forwarded, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		validated := m.checker.ValidateIP(ips[i])
		if validated == UnknownIP {
			continue
		}
		if i > 0 && m.checker.IsTrustedProxy(net.ParseIP(validated)) {
			continue
		}
		return validated
	}
	return UnknownIP
}
