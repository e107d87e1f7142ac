package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/phish-triage/internal/adapters/analysis"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
)

// Analyzer is an implementation of the core.Analyzer interface using
// Google Gemini.
type Analyzer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnalyzer creates a new Gemini analyzer
func NewAnalyzer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Analyzer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Analyzer{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (a *Analyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// AnalyzeEmail asks the model for a verdict on an email
func (a *Analyzer) AnalyzeEmail(ctx context.Context, email *core.Email) (*core.ClassificationResult, error) {
	body := a.textProcessor.ProcessText(email.Body, a.maxBodySize)
	prompt := fmt.Sprintf(analysis.PromptFormat, email.From, email.Subject, body)

	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	responseText, err := extractText(resp)
	if err != nil {
		return nil, err
	}
	payload, err := analysis.Parse(responseText)
	if err != nil {
		return nil, err
	}

	result, err := payload.ToResult(a.modelName)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Gemini analysis complete",
		zap.String("sender", email.From),
		zap.String("verdict", string(result.Verdict)))
	return result, nil
}

// extractText pulls the generated text out of a response. Content is
// nil when generation was safety-blocked, which must surface as an
// error rather than a panic.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("response from Gemini has no content (finish reason: %v)", resp.Candidates[0].FinishReason)
	}
	return fmt.Sprintf("%v", content.Parts[0]), nil
}
