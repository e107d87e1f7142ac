package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/phish-triage/internal/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "bare JSON object",
			input: `{"verdict":"phishing","confidence":92,"indicators":["spoofed sender"]}`,
		},
		{
			name:  "JSON wrapped in prose",
			input: "Here is my analysis:\n```json\n{\"verdict\":\"safe\",\"confidence\":85,\"indicators\":[]}\n```\nLet me know if you need more.",
		},
		{
			name:  "leading and trailing whitespace",
			input: "\n\n  {\"verdict\":\"suspicious\",\"confidence\":70,\"indicators\":[\"urgency\"]}  \n",
		},
		{
			name:    "no JSON at all",
			input:   "I cannot analyze this email.",
			wantErr: true,
		},
		{
			name:    "braces around garbage",
			input:   "{this is not json}",
			wantErr: true,
		},
		{
			name:    "empty response",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, payload.Verdict)
		})
	}
}

func TestPayloadToResult(t *testing.T) {
	payload := &Payload{
		Verdict:    "Phishing",
		Confidence: 92,
		Indicators: []string{"spoofed sender domain"},
		SuspiciousLinks: []core.SuspiciousLink{
			{URL: "http://paypa1.com/login", Reason: "impersonates paypal.com"},
		},
		RecommendedAction: "Delete this message.",
	}

	result, err := payload.ToResult("openai")
	require.NoError(t, err)

	assert.Equal(t, core.VerdictPhishing, result.Verdict)
	assert.Equal(t, 92, result.Confidence)
	assert.Equal(t, "openai", result.Source)
	assert.Equal(t, "Delete this message.", result.RecommendedAction)
	assert.NotEmpty(t, result.ScanID)
	assert.Len(t, result.SuspiciousLinks, 1)
}

func TestPayloadToResultDefaultsAction(t *testing.T) {
	payload := &Payload{Verdict: "safe", Confidence: 80}

	result, err := payload.ToResult("gemini")
	require.NoError(t, err)
	assert.Equal(t, core.ActionForVerdict(core.VerdictSafe), result.RecommendedAction)
}

func TestPayloadToResultValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{
			name:    "unknown verdict",
			payload: Payload{Verdict: "dangerous", Confidence: 50},
		},
		{
			name:    "confidence above range",
			payload: Payload{Verdict: "safe", Confidence: 150},
		},
		{
			name:    "negative confidence",
			payload: Payload{Verdict: "safe", Confidence: -1},
		},
		{
			name:    "phishing without indicators",
			payload: Payload{Verdict: "phishing", Confidence: 95},
		},
		{
			name:    "empty verdict",
			payload: Payload{Confidence: 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.payload.ToResult("bedrock")
			assert.Error(t, err)
		})
	}
}
