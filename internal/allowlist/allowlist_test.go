package allowlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIsAllowedDomain(t *testing.T) {
	checker := NewChecker([]string{"google.com", " PayPal.com ", ""}, zap.NewNop())

	tests := []struct {
		name    string
		host    string
		allowed bool
	}{
		{name: "exact match", host: "google.com", allowed: true},
		{name: "subdomain", host: "mail.google.com", allowed: true},
		{name: "case insensitive", host: "GOOGLE.COM", allowed: true},
		{name: "entry normalized at construction", host: "paypal.com", allowed: true},
		{name: "lookalike suffix is not a subdomain", host: "evilgoogle.com", allowed: false},
		{name: "typosquat", host: "g00gle.com", allowed: false},
		{name: "unrelated", host: "example.org", allowed: false},
		{name: "empty", host: "", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, checker.IsAllowedDomain(tt.host))
		})
	}
}

func TestIsAllowedSender(t *testing.T) {
	checker := NewChecker([]string{"google.com"}, zap.NewNop())

	tests := []struct {
		name    string
		from    string
		allowed bool
	}{
		{name: "allow-listed sender", from: "noreply@google.com", allowed: true},
		{name: "subdomain sender", from: "alerts@accounts.google.com", allowed: true},
		{name: "other domain", from: "noreply@example.org", allowed: false},
		{name: "no at sign", from: "google.com", allowed: false},
		{name: "multiple at signs", from: "a@b@google.com", allowed: false},
		{name: "empty", from: "", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, checker.IsAllowedSender(tt.from))
		})
	}
}

func TestEmptyCheckerAllowsNothing(t *testing.T) {
	checker := NewChecker(nil, zap.NewNop())
	assert.False(t, checker.IsAllowedDomain("google.com"))
	assert.False(t, checker.IsAllowedSender("noreply@google.com"))
}
