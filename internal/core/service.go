package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/allowlist"
)

// TriageService coordinates a scan: allow-list bypass, verdict cache,
// the optional external analyzer and the local heuristic fallback.
// The caller always receives a verdict; only malformed URL input is
// reported as an error.
type TriageService struct {
	analyzer     Analyzer
	heuristic    *HeuristicClassifier
	cache        CacheRepository
	intel        DomainIntel
	allow        *allowlist.Checker
	rules        *Ruleset
	logger       *zap.Logger
	cacheEnabled bool
	cacheTTL     time.Duration
	minDomainAge time.Duration
}

// NewTriageService creates the triage service. analyzer and intel may
// be nil, in which case scans are purely local.
func NewTriageService(
	analyzer Analyzer,
	heuristic *HeuristicClassifier,
	cache CacheRepository,
	intel DomainIntel,
	allow *allowlist.Checker,
	rules *Ruleset,
	logger *zap.Logger,
	cacheEnabled bool,
	cacheTTL time.Duration,
	minDomainAge time.Duration,
) *TriageService {
	return &TriageService{
		analyzer:     analyzer,
		heuristic:    heuristic,
		cache:        cache,
		intel:        intel,
		allow:        allow,
		rules:        rules,
		logger:       logger,
		cacheEnabled: cacheEnabled,
		cacheTTL:     cacheTTL,
		minDomainAge: minDomainAge,
	}
}

// ScanEmail produces a verdict for an email. External analyzer
// failures fall back to the heuristic classifier and are never
// surfaced to the caller.
func (s *TriageService) ScanEmail(ctx context.Context, email *Email) (*ClassificationResult, error) {
	if s.allow.IsAllowedSender(email.From) {
		s.logger.Info("Skipping scan for allow-listed sender",
			zap.String("sender", email.From),
			zap.String("action", "allowlist_bypass"))
		return s.allowlistResult("sender domain is on the allow list"), nil
	}

	key := "email:" + strings.ToLower(strings.TrimSpace(email.From))
	if result := s.cachedResult(ctx, key); result != nil {
		return result, nil
	}

	var result *ClassificationResult
	if s.analyzer != nil {
		analyzed, err := s.analyzer.AnalyzeEmail(ctx, email)
		if err != nil {
			s.logger.Warn("External analyzer failed, falling back to heuristic classifier",
				zap.Error(err),
				zap.String("sender", email.From))
		} else {
			result = analyzed
		}
	}
	if result == nil {
		result = s.heuristic.ClassifyEmail(email.From, email.Subject, email.Body)
	}

	if domain, ok := senderDomain(email.From); ok {
		s.applyDomainIntel(ctx, domain, result)
	}

	s.storeResult(ctx, key, result)
	return result, nil
}

// ScanURL produces a verdict for a URL, or a *ValidationError when the
// input cannot be parsed after scheme normalization.
func (s *TriageService) ScanURL(ctx context.Context, raw string) (*ClassificationResult, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}

	key := "url:" + strings.ToLower(NormalizeURL(strings.TrimSpace(raw)))
	if result := s.cachedResult(ctx, key); result != nil {
		return result, nil
	}

	result, err := s.heuristic.ClassifyURL(raw)
	if err != nil {
		return nil, err
	}

	host := strings.ToLower(u.Hostname())
	if !s.allow.IsAllowedDomain(host) {
		s.applyDomainIntel(ctx, host, result)
	}

	s.storeResult(ctx, key, result)
	return result, nil
}

// allowlistResult builds the fixed safe result for allow-listed input.
func (s *TriageService) allowlistResult(indicator string) *ClassificationResult {
	return &ClassificationResult{
		ScanID:            uuid.NewString(),
		Verdict:           VerdictSafe,
		Confidence:        s.rules.AllowlistBand.Base + s.rules.AllowlistBand.Jitter,
		Indicators:        []string{indicator},
		RecommendedAction: ActionForVerdict(VerdictSafe),
		Source:            SourceAllowlist,
		AnalyzedAt:        time.Now(),
	}
}

// cachedResult returns a result rebuilt from the cache, or nil on miss.
func (s *TriageService) cachedResult(ctx context.Context, key string) *ClassificationResult {
	if !s.cacheEnabled || s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	s.logger.Debug("Verdict cache hit", zap.String("key", key))
	return &ClassificationResult{
		ScanID:            uuid.NewString(),
		Verdict:           entry.Verdict,
		Confidence:        entry.Confidence,
		Indicators:        entry.Indicators,
		SuspiciousLinks:   entry.Links,
		RecommendedAction: ActionForVerdict(entry.Verdict),
		Source:            SourceCache,
		AnalyzedAt:        time.Now(),
	}
}

func (s *TriageService) storeResult(ctx context.Context, key string, result *ClassificationResult) {
	if !s.cacheEnabled || s.cache == nil {
		return
	}
	entry := &CacheEntry{
		Key:        key,
		Verdict:    result.Verdict,
		Confidence: result.Confidence,
		Source:     result.Source,
		Indicators: result.Indicators,
		Links:      result.SuspiciousLinks,
		LastSeen:   time.Now(),
		ExpiresAt:  time.Now().Add(s.cacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update verdict cache", zap.Error(err), zap.String("key", key))
	}
}

// applyDomainIntel appends a recently-registered-domain indicator and
// escalates a safe verdict to suspicious. Lookup failures are logged
// and ignored; intel never blocks or downgrades a verdict.
func (s *TriageService) applyDomainIntel(ctx context.Context, domain string, result *ClassificationResult) {
	if s.intel == nil || s.minDomainAge <= 0 {
		return
	}
	age, err := s.intel.RegistrationAge(ctx, domain)
	if err != nil {
		s.logger.Debug("Domain intel lookup failed", zap.Error(err), zap.String("domain", domain))
		return
	}
	if age >= s.minDomainAge {
		return
	}

	days := int(age.Hours() / 24)
	result.Indicators = append(result.Indicators, fmt.Sprintf("domain registered only %d days ago", days))
	if result.Verdict.Severity() < VerdictSuspicious.Severity() {
		result.Verdict = VerdictSuspicious
		result.Confidence = s.rules.Bands[VerdictSuspicious].Base
		result.RecommendedAction = ActionForVerdict(VerdictSuspicious)
	}
}

// senderDomain extracts the domain part of an email address.
func senderDomain(from string) (string, bool) {
	parts := strings.Split(from, "@")
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}
	return strings.ToLower(parts[1]), true
}
