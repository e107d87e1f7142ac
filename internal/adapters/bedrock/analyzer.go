package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/analysis"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
)

// Analyzer is an implementation of the core.Analyzer interface using
// Amazon Bedrock.
type Analyzer struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnalyzer creates a new Bedrock analyzer
func NewAnalyzer(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Analyzer {
	return &Analyzer{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

func (a *Analyzer) isAnthropicModel() bool {
	return strings.HasPrefix(a.modelID, "anthropic.")
}

func (a *Analyzer) isTitanModel() bool {
	return strings.HasPrefix(a.modelID, "amazon.titan")
}

// AnalyzeEmail asks the model for a verdict on an email
func (a *Analyzer) AnalyzeEmail(ctx context.Context, email *core.Email) (*core.ClassificationResult, error) {
	body := a.textProcessor.ProcessText(email.Body, a.maxBodySize)
	prompt := fmt.Sprintf(analysis.PromptFormat, email.From, email.Subject, body)

	var payload []byte
	var err error
	switch {
	case a.isAnthropicModel():
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": a.maxTokens,
			"temperature":          a.temperature,
			"top_p":                a.topP,
		})
	case a.isTitanModel():
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": a.maxTokens,
				"temperature":   a.temperature,
				"topP":          a.topP,
			},
		})
	default:
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  a.maxTokens,
			"temperature": a.temperature,
			"top_p":       a.topP,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &a.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := a.extractText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := analysis.Parse(responseText)
	if err != nil {
		return nil, err
	}

	result, err := parsed.ToResult(a.modelID)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Bedrock analysis complete",
		zap.String("sender", email.From),
		zap.String("verdict", string(result.Verdict)))
	return result, nil
}

// extractText pulls the generated text out of the model-specific
// response envelope.
func (a *Analyzer) extractText(body []byte) (string, error) {
	switch {
	case a.isAnthropicModel():
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	case a.isTitanModel():
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	default:
		var genericResp struct {
			Output   string `json:"output"`
			Text     string `json:"text"`
			Response string `json:"response"`
		}
		if err := json.Unmarshal(body, &genericResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
		}
		for _, text := range []string{genericResp.Output, genericResp.Text, genericResp.Response} {
			if text != "" {
				return text, nil
			}
		}
		return string(body), nil
	}
}
