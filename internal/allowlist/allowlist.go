package allowlist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker reports whether domains or sender addresses belong to the
// configured set of known-legitimate domains.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a checker over the given domains. Entries are
// trimmed and lowercased once up front.
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d != "" {
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized allow-list checker", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// IsAllowedDomain reports whether host matches an allow-listed domain
// exactly or as a subdomain.
func (c *Checker) IsAllowedDomain(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	for _, domain := range c.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			if c.logger != nil {
				c.logger.Debug("Domain is allow-listed", zap.String("host", host), zap.String("domain", domain))
			}
			return true
		}
	}
	return false
}

// IsAllowedSender reports whether the domain part of an email address
// is allow-listed.
func (c *Checker) IsAllowedSender(from string) bool {
	if len(c.domains) == 0 {
		return false
	}
	parts := strings.Split(from, "@")
	if len(parts) != 2 {
		return false
	}
	return c.IsAllowedDomain(parts[1])
}
