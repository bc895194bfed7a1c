package ip

import (
	"net"
	"strings"

	"github.com/robalyx/guardian/internal/setup/config"
	"go.uber.org/zap"
)

// Checker validates client addresses and recognizes trusted proxies.
type Checker struct {
	trusted []*net.IPNet
	logger  *zap.Logger
}

// NewChecker parses the trusted proxy list. Entries may be CIDR ranges or bare
// addresses; invalid entries are logged and skipped.
func NewChecker(logger *zap.Logger, config *config.IPConfig) *Checker {
	checker := &Checker{logger: logger}

	for _, entry := range config.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 128
				if ip.To4() != nil {
					ip = ip.To4()
					bits = 32
				}
				checker.trusted = append(checker.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warn("Ignoring invalid trusted proxy", zap.String("entry", entry), zap.Error(err))
			continue
		}
		checker.trusted = append(checker.trusted, network)
	}

	return checker
}

// IsTrustedProxy reports whether ip belongs to a trusted proxy range.
func (c *Checker) IsTrustedProxy(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsValidClientIP reports whether ip can identify a client.
func (c *Checker) IsValidClientIP(ip net.IP) bool {
	return ip != nil && !ip.IsUnspecified() && !ip.IsMulticast()
}

// ValidateIP parses raw and returns its canonical form, or UnknownIP.
func (c *Checker) ValidateIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if !c.IsValidClientIP(ip) {
		return UnknownIP
	}
	return ip.String()
}
