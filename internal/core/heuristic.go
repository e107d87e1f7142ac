package core

import (
	"fmt"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// linkPattern matches URLs embedded in email content.
var linkPattern = regexp.MustCompile(`(?i)https?://[^\s<>"')\]]+`)

// HeuristicClassifier assigns a risk verdict to URLs and emails by
// matching against the configured rule tables. It performs no I/O and
// is safe for concurrent use; the only mutable state is the jitter
// source, which is guarded by rngMu.
type HeuristicClassifier struct {
	rules  *Ruleset
	rng    *rand.Rand
	rngMu  sync.Mutex
	logger *zap.Logger
}

// NewHeuristicClassifier creates a classifier over the given rules.
// A nil rng disables confidence jitter, so every verdict reports the
// base confidence of its band; pass a seeded rand.Rand to get bounded
// jitter that is reproducible under the same seed.
func NewHeuristicClassifier(rules *Ruleset, rng *rand.Rand, logger *zap.Logger) *HeuristicClassifier {
	return &HeuristicClassifier{
		rules:  rules,
		rng:    rng,
		logger: logger,
	}
}

// NormalizeURL prefixes a scheme when the input has none, so that bare
// hostnames like "google.com" parse the same as full URLs. Applying it
// twice is a no-op.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		return "https://" + trimmed
	}
	return trimmed
}

// ParseURL normalizes and parses a URL submission. Failures are
// reported as *ValidationError, never as a verdict.
func ParseURL(raw string) (*url.URL, error) {
	normalized := NormalizeURL(raw)
	if normalized == "" {
		return nil, &ValidationError{Input: raw, Reason: "empty input"}
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return nil, &ValidationError{Input: raw, Reason: "not a parseable URL"}
	}
	host := u.Hostname()
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " \t") {
		return nil, &ValidationError{Input: raw, Reason: "missing or malformed hostname"}
	}
	return u, nil
}

// foldText lowercases text after NFKC normalization, collapsing
// fullwidth and compatibility characters that are sometimes used to
// sneak keywords past naive matching.
func foldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// scan accumulates indicators and the current verdict during one
// evaluation pass. The verdict only ever moves up in severity.
type scan struct {
	verdict    Verdict
	indicators []string
	links      []SuspiciousLink
}

func (s *scan) escalate(v Verdict, indicator string) {
	if v.Severity() > s.verdict.Severity() {
		s.verdict = v
	}
	if indicator != "" {
		s.indicators = append(s.indicators, indicator)
	}
}

func (s *scan) flagLink(link SuspiciousLink, tier Verdict) {
	s.links = append(s.links, link)
	s.escalate(tier, fmt.Sprintf("suspicious link: %s (%s)", link.URL, link.Reason))
}

// ClassifyURL evaluates a single URL. The only error it can return is
// *ValidationError for input that cannot be parsed after scheme
// normalization; every parseable URL gets a verdict.
func (c *HeuristicClassifier) ClassifyURL(raw string) (*ClassificationResult, error) {
	u, err := ParseURL(raw)
	if err != nil {
		return nil, err
	}

	host := foldText(u.Hostname())
	path := foldText(u.Path)
	s := &scan{verdict: VerdictSafe}

	if domain, ok := c.matchAllowlist(host); ok {
		s.indicators = append(s.indicators, fmt.Sprintf("%s is a known legitimate domain", domain))
		return c.finalize(s, true), nil
	}

	for variant, brand := range c.rules.TyposquatVariants {
		if strings.Contains(host, variant) {
			s.escalate(VerdictMalicious, fmt.Sprintf("possible typosquatting of %s (%q in hostname)", brand, variant))
		}
	}

	for _, kw := range c.rules.PhishingKeywords {
		if strings.Contains(host, kw) {
			s.escalate(VerdictMalicious, fmt.Sprintf("phishing keyword %q in domain", kw))
		}
	}

	for _, tok := range c.rules.SuspiciousTokens {
		if strings.Contains(host, tok) {
			s.escalate(VerdictSuspicious, fmt.Sprintf("suspicious term %q in hostname", tok))
		} else if strings.Contains(path, tok) {
			s.escalate(VerdictSuspicious, fmt.Sprintf("suspicious term %q in URL path", tok))
		}
	}
	if strings.Count(host, "-") >= 2 {
		s.escalate(VerdictSuspicious, "hostname contains multiple hyphens")
	}

	if c.logger != nil {
		c.logger.Debug("Classified URL",
			zap.String("host", host),
			zap.String("verdict", string(s.verdict)))
	}
	return c.finalize(s, false), nil
}

// ClassifyEmail evaluates an email from its sender, subject and body
// content. It is total: malformed or empty input yields a safe verdict
// with few indicators rather than an error.
func (c *HeuristicClassifier) ClassifyEmail(sender, subject, content string) *ClassificationResult {
	s := &scan{verdict: VerdictSafe}
	text := foldText(subject + "\n" + content)

	for _, kw := range c.rules.UrgencyKeywords {
		if strings.Contains(text, kw) {
			s.escalate(VerdictSuspicious, fmt.Sprintf("urgency language: %q", kw))
		}
	}
	for _, kw := range c.rules.SensitiveKeywords {
		if strings.Contains(text, kw) {
			s.escalate(VerdictSuspicious, fmt.Sprintf("requests sensitive information: %q", kw))
		}
	}

	c.checkSenderSpoofing(sender, s)

	for _, raw := range linkPattern.FindAllString(content, -1) {
		link := strings.TrimRight(raw, ".,;")
		folded := foldText(link)

		flagged := false
		for variant, brand := range c.rules.TyposquatVariants {
			if strings.Contains(folded, variant) {
				s.flagLink(SuspiciousLink{URL: link, Reason: fmt.Sprintf("impersonates %s", brand)}, VerdictPhishing)
				flagged = true
				break
			}
		}
		if flagged {
			continue
		}
		for _, kw := range c.rules.AuthLinkKeywords {
			if strings.Contains(folded, kw) {
				s.flagLink(SuspiciousLink{URL: link, Reason: fmt.Sprintf("contains credential-harvesting keyword %q", kw)}, VerdictPhishing)
				break
			}
		}
	}

	if c.logger != nil {
		c.logger.Debug("Classified email",
			zap.String("sender", sender),
			zap.String("verdict", string(s.verdict)),
			zap.Int("suspicious_links", len(s.links)))
	}
	return c.finalize(s, false)
}

// checkSenderSpoofing flags senders whose domain names a brand that the
// address was not actually sent from.
func (c *HeuristicClassifier) checkSenderSpoofing(sender string, s *scan) {
	parts := strings.Split(sender, "@")
	if len(parts) != 2 {
		return
	}
	domain := foldText(parts[1])

	for variant, real := range c.rules.TyposquatVariants {
		if strings.Contains(domain, variant) {
			s.escalate(VerdictPhishing, fmt.Sprintf("sender domain spoofing: %s imitates %s", domain, real))
			return
		}
	}
	for brand, real := range c.rules.BrandDomains {
		if !strings.Contains(domain, brand) {
			continue
		}
		if domain == real || strings.HasSuffix(domain, "."+real) {
			continue
		}
		s.escalate(VerdictPhishing, fmt.Sprintf("sender domain spoofing: %s claims %s but was not sent from %s", domain, brand, real))
		return
	}
}

// matchAllowlist reports whether host is an allow-listed domain or a
// subdomain of one.
func (c *HeuristicClassifier) matchAllowlist(host string) (string, bool) {
	for _, domain := range c.rules.AllowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return domain, true
		}
	}
	return "", false
}

// finalize assigns confidence once the verdict is settled and pads the
// indicator list for high-severity verdicts with too little detail.
func (c *HeuristicClassifier) finalize(s *scan, allowlisted bool) *ClassificationResult {
	if s.verdict.Severity() >= VerdictPhishing.Severity() && len(s.indicators) < 2 {
		s.indicators = append(s.indicators, "multiple suspicious elements detected")
	}

	band := c.rules.Bands[s.verdict]
	if allowlisted {
		band = c.rules.AllowlistBand
	}
	confidence := band.Base
	if c.rng != nil && band.Jitter > 0 {
		c.rngMu.Lock()
		confidence += c.rng.Intn(band.Jitter + 1)
		c.rngMu.Unlock()
	}

	return &ClassificationResult{
		ScanID:            uuid.NewString(),
		Verdict:           s.verdict,
		Confidence:        confidence,
		Indicators:        s.indicators,
		SuspiciousLinks:   s.links,
		RecommendedAction: ActionForVerdict(s.verdict),
		Source:            SourceHeuristic,
		AnalyzedAt:        time.Now(),
	}
}
