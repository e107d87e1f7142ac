// Package domainintel enriches scans with WHOIS registration data.
// A freshly registered domain is a strong phishing signal on its own.
package domainintel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"
)

// WhoisIntel implements the core.DomainIntel interface over live
// WHOIS lookups.
type WhoisIntel struct {
	logger *zap.Logger
}

// NewWhoisIntel creates a WHOIS-backed domain intel source
func NewWhoisIntel(logger *zap.Logger) *WhoisIntel {
	return &WhoisIntel{logger: logger}
}

// creationDateLayouts cover the formats registrars commonly use when
// the parser cannot produce a typed date.
var creationDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
}

// RegistrationAge returns how long ago the domain was registered. For
// subdomains whose WHOIS record is empty the parent domain is tried.
func (w *WhoisIntel) RegistrationAge(ctx context.Context, domain string) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := whois.Whois(domain)
	if err != nil {
		return 0, fmt.Errorf("whois lookup for %s failed: %w", domain, err)
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil || parsed.Domain == nil || parsed.Domain.CreatedDate == "" {
		// Registrars only keep records for registrable domains, so
		// retry one level up for subdomains.
		if parts := strings.Split(domain, "."); len(parts) > 2 {
			return w.RegistrationAge(ctx, strings.Join(parts[1:], "."))
		}
		if err != nil {
			return 0, fmt.Errorf("failed to parse whois record for %s: %w", domain, err)
		}
		return 0, fmt.Errorf("no creation date in whois record for %s", domain)
	}

	created, err := parseCreationDate(parsed.Domain)
	if err != nil {
		return 0, err
	}

	age := time.Since(created)
	w.logger.Debug("WHOIS registration age resolved",
		zap.String("domain", domain),
		zap.Duration("age", age))
	return age, nil
}

func parseCreationDate(d *whoisparser.Domain) (time.Time, error) {
	if d.CreatedDateInTime != nil {
		return *d.CreatedDateInTime, nil
	}
	created := strings.TrimSpace(d.CreatedDate)
	for _, layout := range creationDateLayouts {
		if t, err := time.Parse(layout, created); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized creation date %q", created)
}
