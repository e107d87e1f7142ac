package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/allowlist"
)

type fakeAnalyzer struct {
	result *ClassificationResult
	err    error
	calls  int
}

func (f *fakeAnalyzer) AnalyzeEmail(ctx context.Context, email *Email) (*ClassificationResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeCache struct {
	entries map[string]*CacheEntry
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*CacheEntry)}
}

func (f *fakeCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	entry, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (f *fakeCache) Set(ctx context.Context, entry *CacheEntry) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[entry.Key] = entry
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func (f *fakeCache) Cleanup(ctx context.Context) error { return nil }

type fakeIntel struct {
	age   time.Duration
	err   error
	calls int
}

func (f *fakeIntel) RegistrationAge(ctx context.Context, domain string) (time.Duration, error) {
	f.calls++
	return f.age, f.err
}

func newTestService(analyzer Analyzer, cache CacheRepository, intel DomainIntel) *TriageService {
	rules := DefaultRuleset()
	logger := zap.NewNop()
	return NewTriageService(
		analyzer,
		NewHeuristicClassifier(rules, nil, logger),
		cache,
		intel,
		allowlist.NewChecker(rules.AllowedDomains, logger),
		rules,
		logger,
		true,
		time.Hour,
		30*24*time.Hour,
	)
}

func TestScanEmailAllowlistBypass(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("should not be called")}
	svc := newTestService(analyzer, newFakeCache(), nil)

	result, err := svc.ScanEmail(context.Background(), &Email{
		From:    "noreply@google.com",
		Subject: "URGENT: verify your account",
		Body:    "http://g00gle.com/login",
	})
	require.NoError(t, err)

	assert.Equal(t, VerdictSafe, result.Verdict)
	assert.Equal(t, SourceAllowlist, result.Source)
	assert.Equal(t, 99, result.Confidence)
	assert.Zero(t, analyzer.calls, "allow-listed senders bypass the analyzer")
}

func TestScanEmailAnalyzerResult(t *testing.T) {
	analyzed := &ClassificationResult{
		ScanID:            "ext-1",
		Verdict:           VerdictPhishing,
		Confidence:        93,
		Indicators:        []string{"analyzer flagged credential request"},
		RecommendedAction: ActionForVerdict(VerdictPhishing),
		Source:            "openai",
		AnalyzedAt:        time.Now(),
	}
	analyzer := &fakeAnalyzer{result: analyzed}
	cache := newFakeCache()
	svc := newTestService(analyzer, cache, nil)

	result, err := svc.ScanEmail(context.Background(), &Email{
		From:    "billing@example.net",
		Subject: "Invoice",
		Body:    "see attached",
	})
	require.NoError(t, err)

	assert.Equal(t, analyzed, result)
	assert.Equal(t, 1, analyzer.calls)

	entry, ok := cache.entries["email:billing@example.net"]
	require.True(t, ok, "analyzer verdicts are cached")
	assert.Equal(t, VerdictPhishing, entry.Verdict)
}

func TestScanEmailAnalyzerFailureFallsBack(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("rate limited")}
	svc := newTestService(analyzer, newFakeCache(), nil)

	result, err := svc.ScanEmail(context.Background(), &Email{
		From:    "security@paypa1.com",
		Subject: "URGENT: verify your account",
		Body:    "Click http://paypa1.com/login now.",
	})
	require.NoError(t, err, "analyzer failures never surface to the caller")

	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, VerdictPhishing, result.Verdict)
	assert.Equal(t, SourceHeuristic, result.Source)
	assert.NotEmpty(t, result.SuspiciousLinks)
}

func TestScanEmailCacheHit(t *testing.T) {
	cache := newFakeCache()
	cache.entries["email:security@paypa1.com"] = &CacheEntry{
		Key:        "email:security@paypa1.com",
		Verdict:    VerdictPhishing,
		Confidence: 91,
		Source:     SourceHeuristic,
		Indicators: []string{"sender domain spoofing: paypa1.com imitates paypal.com"},
		Links: []SuspiciousLink{
			{URL: "http://paypa1.com/login", Reason: "impersonates paypal.com"},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	analyzer := &fakeAnalyzer{err: errors.New("should not be called")}
	svc := newTestService(analyzer, cache, nil)

	// Sender casing and whitespace do not defeat the cache key.
	result, err := svc.ScanEmail(context.Background(), &Email{
		From:    "  Security@PAYPA1.com  ",
		Subject: "x",
		Body:    "y",
	})
	require.NoError(t, err)

	assert.Equal(t, SourceCache, result.Source)
	assert.Equal(t, VerdictPhishing, result.Verdict)
	assert.Equal(t, 91, result.Confidence)
	require.Len(t, result.SuspiciousLinks, 1)
	assert.Equal(t, "http://paypa1.com/login", result.SuspiciousLinks[0].URL)
	assert.Zero(t, analyzer.calls)
}

func TestScanEmailCacheKeepsSuspiciousLinks(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(nil, cache, nil)

	email := &Email{
		From:    "it@example.net",
		Subject: "Mailbox notice",
		Body:    "Please visit https://portal.example.net/login/reset today.",
	}

	first, err := svc.ScanEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotEmpty(t, first.SuspiciousLinks)

	second, err := svc.ScanEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.SuspiciousLinks, second.SuspiciousLinks)
}

func TestScanURLCacheRoundTrip(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(nil, cache, nil)

	first, err := svc.ScanURL(context.Background(), "https://g00gle.com")
	require.NoError(t, err)
	assert.Equal(t, SourceHeuristic, first.Source)
	assert.Equal(t, VerdictMalicious, first.Verdict)

	second, err := svc.ScanURL(context.Background(), "https://G00GLE.com")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Verdict, second.Verdict)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.NotEqual(t, first.ScanID, second.ScanID, "each scan gets its own ID")
}

func TestScanURLValidationError(t *testing.T) {
	svc := newTestService(nil, newFakeCache(), nil)

	_, err := svc.ScanURL(context.Background(), "not a url")
	require.Error(t, err)

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestScanURLCacheWriteFailureIsNonFatal(t *testing.T) {
	cache := newFakeCache()
	cache.setErr = errors.New("disk full")
	svc := newTestService(nil, cache, nil)

	result, err := svc.ScanURL(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, VerdictSafe, result.Verdict)
}

func TestScanURLYoungDomainEscalates(t *testing.T) {
	intel := &fakeIntel{age: 5 * 24 * time.Hour}
	svc := newTestService(nil, newFakeCache(), intel)

	result, err := svc.ScanURL(context.Background(), "https://example.org")
	require.NoError(t, err)

	assert.Equal(t, 1, intel.calls)
	assert.Equal(t, VerdictSuspicious, result.Verdict)
	assert.Equal(t, 70, result.Confidence)
	assert.Contains(t, result.Indicators, "domain registered only 5 days ago")
}

func TestScanURLOldDomainUnchanged(t *testing.T) {
	intel := &fakeIntel{age: 400 * 24 * time.Hour}
	svc := newTestService(nil, newFakeCache(), intel)

	result, err := svc.ScanURL(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, VerdictSafe, result.Verdict)
}

func TestScanURLAllowlistedSkipsIntel(t *testing.T) {
	intel := &fakeIntel{age: time.Hour}
	svc := newTestService(nil, newFakeCache(), intel)

	result, err := svc.ScanURL(context.Background(), "https://google.com")
	require.NoError(t, err)

	assert.Equal(t, VerdictSafe, result.Verdict)
	assert.Zero(t, intel.calls, "allow-listed domains skip registration lookups")
}

func TestScanURLIntelFailureIgnored(t *testing.T) {
	intel := &fakeIntel{err: errors.New("whois timeout")}
	svc := newTestService(nil, newFakeCache(), intel)

	result, err := svc.ScanURL(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, VerdictSafe, result.Verdict)
}

func TestScanEmailYoungSenderDomainEscalates(t *testing.T) {
	intel := &fakeIntel{age: 2 * 24 * time.Hour}
	svc := newTestService(nil, newFakeCache(), intel)

	result, err := svc.ScanEmail(context.Background(), &Email{
		From:    "hello@brand-new.example",
		Subject: "hi",
		Body:    "greetings",
	})
	require.NoError(t, err)

	assert.Equal(t, VerdictSuspicious, result.Verdict)
	assert.Contains(t, result.Indicators, "domain registered only 2 days ago")
}
