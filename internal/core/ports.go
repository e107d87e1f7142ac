package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by cache lookups with no live entry.
var ErrNotFound = errors.New("cache entry not found")

// Analyzer is an external analysis service that can produce a verdict
// for an email. Any failure makes the triage service fall back to the
// local heuristic classifier, so implementations should return an
// error rather than a guessed result.
type Analyzer interface {
	AnalyzeEmail(ctx context.Context, email *Email) (*ClassificationResult, error)
}

// CacheRepository stores verdicts keyed by normalized URL or sender
// address.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Cleanup(ctx context.Context) error
}

// DomainIntel looks up how long ago a domain was registered. Young
// domains are a phishing signal; lookup failures are ignored by the
// caller and never block a verdict.
type DomainIntel interface {
	RegistrationAge(ctx context.Context, domain string) (time.Duration, error)
}
