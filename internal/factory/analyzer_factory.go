package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/bedrock"
	"github.com/mikey/phish-triage/internal/adapters/gemini"
	"github.com/mikey/phish-triage/internal/adapters/openai"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/utils"
)

// AnalyzerFactory creates external analyzer clients from configuration.
type AnalyzerFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AnalyzerFactory {
	return &AnalyzerFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAnalyzer creates the configured analyzer, or nil when scans
// should stay local.
func (f *AnalyzerFactory) CreateAnalyzer() (core.Analyzer, error) {
	switch provider := f.cfg.GetLLM().Provider; provider {
	case "", "none", "local":
		return nil, nil
	case "openai":
		c := f.cfg.GetOpenAI()
		return openai.NewAnalyzer(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, c.MaxBodySize, f.logger, f.textProcessor), nil
	case "gemini":
		c := f.cfg.GetGemini()
		return gemini.NewAnalyzer(c.APIKey, c.ModelName, c.MaxTokens, c.Temperature, c.TopP, c.MaxBodySize, f.logger, f.textProcessor)
	case "bedrock":
		c := f.cfg.GetBedrock()
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(c.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.NewAnalyzer(client, c.ModelID, c.MaxTokens, c.Temperature, c.TopP, c.MaxBodySize, f.logger, f.textProcessor), nil
	default:
		return nil, fmt.Errorf("unsupported analyzer provider: %s", provider)
	}
}
