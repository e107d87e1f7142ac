package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/config"
)

func TestBuildRulesetMergesConfigOverrides(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("triage.allowed_domains", []string{"intranet.example"})
	v.Set("triage.urgency_keywords", []string{"wire the funds"})
	v.Set("triage.phishing_keywords", []string{"session-expired"})

	rules := buildRuleset(config.NewFromViper(v), zap.NewNop())

	assert.Contains(t, rules.AllowedDomains, "intranet.example")
	assert.Contains(t, rules.UrgencyKeywords, "wire the funds")
	assert.Contains(t, rules.PhishingKeywords, "session-expired")
}

func TestBuildRulesetDefaults(t *testing.T) {
	rules := buildRuleset(config.NewFromViper(config.NewEmptyViper()), zap.NewNop())

	assert.Contains(t, rules.AllowedDomains, "google.com")
	assert.NotEmpty(t, rules.PhishingKeywords)
}
