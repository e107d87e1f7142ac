package core

import (
	"fmt"
	"time"
)

// Verdict is a risk tier assigned to a scanned URL or email.
type Verdict string

const (
	VerdictSafe       Verdict = "safe"
	VerdictSuspicious Verdict = "suspicious"
	// VerdictPhishing is the highest tier for email scans,
	// VerdictMalicious the equivalent for URL scans.
	VerdictPhishing  Verdict = "phishing"
	VerdictMalicious Verdict = "malicious"
)

// Severity ranks verdicts so that escalation can compare tiers across
// the URL and email vocabularies. Higher is worse.
func (v Verdict) Severity() int {
	switch v {
	case VerdictSuspicious:
		return 1
	case VerdictPhishing, VerdictMalicious:
		return 2
	default:
		return 0
	}
}

// Valid reports whether v is one of the known verdict values.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictSafe, VerdictSuspicious, VerdictPhishing, VerdictMalicious:
		return true
	}
	return false
}

// SuspiciousLink is a URL found in email content together with the
// reason it was flagged.
type SuspiciousLink struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ClassificationResult is the outcome of one scan. It is constructed
// fresh per submission and must not be modified after it is returned.
type ClassificationResult struct {
	ScanID            string           `json:"scan_id"`
	Verdict           Verdict          `json:"verdict"`
	Confidence        int              `json:"confidence"`
	Indicators        []string         `json:"indicators"`
	SuspiciousLinks   []SuspiciousLink `json:"suspicious_links,omitempty"`
	RecommendedAction string           `json:"recommended_action"`
	Source            string           `json:"source"`
	AnalyzedAt        time.Time        `json:"analyzed_at"`
}

// Result sources.
const (
	SourceHeuristic = "heuristic"
	SourceCache     = "cache"
	SourceAllowlist = "allowlist"
)

// ActionForVerdict returns the fixed recommended action for a verdict tier.
func ActionForVerdict(v Verdict) string {
	switch v {
	case VerdictSuspicious:
		return "Treat with caution and verify the sender through another channel."
	case VerdictPhishing, VerdictMalicious:
		return "Do not click any links or reply. Report and delete this message."
	default:
		return "No action needed."
	}
}

// Email is a message submitted for triage.
type Email struct {
	From    string
	To      []string
	Subject string
	Body    string
	Headers map[string][]string
}

// CacheEntry is a cached verdict keyed by normalized URL or sender address.
type CacheEntry struct {
	Key        string
	Verdict    Verdict
	Confidence int
	Source     string
	Indicators []string
	Links      []SuspiciousLink
	LastSeen   time.Time
	ExpiresAt  time.Time
}

// ValidationError reports input that could not be scanned at all. It is
// distinct from any verdict: a malformed URL never classifies as safe.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Reason)
}
