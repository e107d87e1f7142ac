package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/analysis"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
)

// Analyzer is an implementation of the core.Analyzer interface using OpenAI.
type Analyzer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnalyzer creates a new OpenAI analyzer
func NewAnalyzer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Analyzer {
	return &Analyzer{
		client:        openai.NewClient(apiKey),
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// AnalyzeEmail asks the model for a verdict on an email
func (a *Analyzer) AnalyzeEmail(ctx context.Context, email *core.Email) (*core.ClassificationResult, error) {
	body := a.textProcessor.ProcessText(email.Body, a.maxBodySize)
	prompt := fmt.Sprintf(analysis.PromptFormat, email.From, email.Subject, body)

	req := openai.ChatCompletionRequest{
		Model: a.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a phishing triage system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
		TopP:        a.topP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: "json",
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	payload, err := analysis.Parse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	result, err := payload.ToResult(a.modelName)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("OpenAI analysis complete",
		zap.String("sender", email.From),
		zap.String("verdict", string(result.Verdict)))
	return result, nil
}
