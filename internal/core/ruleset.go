package core

import "strings"

// ConfidenceBand is the fixed confidence range for a verdict tier.
// The reported confidence is Base plus a bounded non-negative jitter,
// so it always stays within [Base, Base+Jitter].
type ConfidenceBand struct {
	Base   int
	Jitter int
}

// Ruleset holds the heuristic lookup tables. It is passed into the
// classifier as immutable configuration so deployments and tests can
// substitute their own lists.
type Ruleset struct {
	// AllowedDomains are known-legitimate domains. Exact matches and
	// subdomains classify as safe with high confidence.
	AllowedDomains []string

	// TyposquatVariants maps a character-substitution variant of a brand
	// name to the brand's real domain (e.g. "g00gle" -> "google.com").
	TyposquatVariants map[string]string

	// BrandDomains maps a brand token to its real domain, used to detect
	// sender addresses that name a brand they were not sent from.
	BrandDomains map[string]string

	// PhishingKeywords classify a hostname as malicious outright.
	PhishingKeywords []string

	// SuspiciousTokens in a hostname or URL path classify as suspicious.
	SuspiciousTokens []string

	// UrgencyKeywords and SensitiveKeywords escalate email content to at
	// least suspicious.
	UrgencyKeywords   []string
	SensitiveKeywords []string

	// AuthLinkKeywords flag embedded URLs as credential-harvesting.
	AuthLinkKeywords []string

	// Bands are the per-verdict confidence ranges. AllowlistBand applies
	// to safe verdicts earned through the allow-list rather than by
	// falling through every rule.
	Bands         map[Verdict]ConfidenceBand
	AllowlistBand ConfidenceBand
}

// RulesetOverrides are config-supplied additions to the built-in
// tables. Entries are appended, never removed, so overrides can only
// widen detection or the allow list.
type RulesetOverrides struct {
	AllowedDomains   []string
	UrgencyKeywords  []string
	PhishingKeywords []string
}

// Merge appends the overrides to the ruleset's tables. Keywords are
// lowercased to match the folded text they are compared against.
func (r *Ruleset) Merge(o RulesetOverrides) {
	r.AllowedDomains = append(r.AllowedDomains, lowerAll(o.AllowedDomains)...)
	r.UrgencyKeywords = append(r.UrgencyKeywords, lowerAll(o.UrgencyKeywords)...)
	r.PhishingKeywords = append(r.PhishingKeywords, lowerAll(o.PhishingKeywords)...)
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DefaultRuleset returns the built-in tables. Callers must not mutate
// the returned value; derive a copy instead.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		AllowedDomains: []string{
			"google.com",
			"microsoft.com",
			"apple.com",
			"amazon.com",
			"paypal.com",
			"github.com",
			"netflix.com",
			"facebook.com",
			"linkedin.com",
			"dropbox.com",
		},
		TyposquatVariants: map[string]string{
			"g00gle":     "google.com",
			"g0ogle":     "google.com",
			"go0gle":     "google.com",
			"paypa1":     "paypal.com",
			"paypai":     "paypal.com",
			"pay-pal":    "paypal.com",
			"amaz0n":     "amazon.com",
			"arnazon":    "amazon.com",
			"micr0soft":  "microsoft.com",
			"rnicrosoft": "microsoft.com",
			"app1e":      "apple.com",
			"netf1ix":    "netflix.com",
			"netfl1x":    "netflix.com",
			"faceb00k":   "facebook.com",
			"1inkedin":   "linkedin.com",
			"linked1n":   "linkedin.com",
			"dr0pbox":    "dropbox.com",
		},
		BrandDomains: map[string]string{
			"google":    "google.com",
			"microsoft": "microsoft.com",
			"apple":     "apple.com",
			"amazon":    "amazon.com",
			"paypal":    "paypal.com",
			"github":    "github.com",
			"netflix":   "netflix.com",
			"facebook":  "facebook.com",
			"linkedin":  "linkedin.com",
			"dropbox":   "dropbox.com",
		},
		PhishingKeywords: []string{
			"verify-account",
			"account-verify",
			"secure-update",
			"banking-alert",
			"confirm-identity",
			"account-suspended",
			"wallet-validate",
			"webscr",
		},
		SuspiciousTokens: []string{
			"secure",
			"login",
			"signin",
			"verify",
			"update",
			"account",
			"confirm",
			"password",
		},
		UrgencyKeywords: []string{
			"urgent",
			"immediately",
			"act now",
			"expires",
			"expire",
			"suspended",
			"within 24 hours",
			"final notice",
			"last warning",
			"verify your account",
		},
		SensitiveKeywords: []string{
			"password",
			"social security",
			"ssn",
			"credit card",
			"card number",
			"bank account",
			"pin code",
			"security question",
		},
		AuthLinkKeywords: []string{
			"login",
			"signin",
			"verify",
			"secure",
			"account",
			"password",
			"webscr",
		},
		Bands: map[Verdict]ConfidenceBand{
			VerdictSafe:       {Base: 85, Jitter: 10},
			VerdictSuspicious: {Base: 70, Jitter: 10},
			VerdictPhishing:   {Base: 90, Jitter: 5},
			VerdictMalicious:  {Base: 90, Jitter: 5},
		},
		AllowlistBand: ConfidenceBand{Base: 90, Jitter: 9},
	}
}
