// Package analysis holds the wire payload shared by the external
// analyzer adapters: the JSON shape the model is prompted for, and the
// parsing that turns a model reply into a ClassificationResult.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mikey/phish-triage/internal/core"
)

// PromptFormat is the instruction block shared by every provider. The
// format arguments are sender, subject and body.
const PromptFormat = `You are a phishing triage system. Analyze the following email and decide how risky it is.
Respond with a JSON object containing:
- verdict: one of "safe", "suspicious" or "phishing"
- confidence: integer between 0 and 100
- indicators: array of short strings, each explaining one matched signal
- suspicious_links: array of objects with "url" and "reason" for each risky link found in the body
- recommended_action: one short sentence for the recipient

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// Payload is the ClassificationResult-shaped response expected from
// the model.
type Payload struct {
	Verdict           string                `json:"verdict"`
	Confidence        int                   `json:"confidence"`
	Indicators        []string              `json:"indicators"`
	SuspiciousLinks   []core.SuspiciousLink `json:"suspicious_links"`
	RecommendedAction string                `json:"recommended_action"`
}

// Parse extracts the payload from a model reply. Models occasionally
// wrap the JSON in prose, so when the raw text does not unmarshal the
// outermost brace-delimited region is tried before giving up.
func Parse(text string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		start := strings.IndexByte(text, '{')
		end := strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in analyzer response: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
			return nil, fmt.Errorf("failed to parse analyzer response as JSON: %w", err)
		}
	}
	return &p, nil
}

// ToResult validates the payload and converts it into a result tagged
// with the given source. Invalid payloads are errors so the caller
// falls back to the local classifier instead of trusting them.
func (p *Payload) ToResult(source string) (*core.ClassificationResult, error) {
	verdict := core.Verdict(strings.ToLower(strings.TrimSpace(p.Verdict)))
	if !verdict.Valid() {
		return nil, fmt.Errorf("analyzer returned unknown verdict %q", p.Verdict)
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return nil, fmt.Errorf("analyzer confidence %d out of range", p.Confidence)
	}
	if verdict.Severity() >= core.VerdictPhishing.Severity() && len(p.Indicators) == 0 {
		return nil, fmt.Errorf("analyzer returned %s verdict without indicators", verdict)
	}

	action := strings.TrimSpace(p.RecommendedAction)
	if action == "" {
		action = core.ActionForVerdict(verdict)
	}

	return &core.ClassificationResult{
		ScanID:            uuid.NewString(),
		Verdict:           verdict,
		Confidence:        p.Confidence,
		Indicators:        p.Indicators,
		SuspiciousLinks:   p.SuspiciousLinks,
		RecommendedAction: action,
		Source:            source,
		AnalyzedAt:        time.Now(),
	}, nil
}
