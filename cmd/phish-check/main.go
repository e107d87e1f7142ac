package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/factory"
	"github.com/mikey/phish-triage/internal/logging"
	"github.com/mikey/phish-triage/internal/utils"
)

var (
	// Input flags
	urlInput  = flag.String("url", "", "URL to classify (email mode is used when empty)")
	inputFile = flag.String("file", "", "Input email file (use stdin if not specified)")

	// Analyzer flags
	provider    = flag.String("provider", "none", "External analyzer provider (none, openai, gemini, bedrock)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for analyzer response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for analyzer generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for analyzer generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to the analyzer")

	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Triage flags
	allowDomains = flag.String("allow", "", "Comma-separated list of additional allow-listed domains")
	jitterSeed   = flag.Int64("seed", 0, "Seed for confidence jitter (0 disables jitter)")

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(3)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	rules := core.DefaultRuleset()
	rules.Merge(core.RulesetOverrides{
		AllowedDomains:   cfg.GetStringSlice("triage.allowed_domains"),
		UrgencyKeywords:  cfg.GetStringSlice("triage.urgency_keywords"),
		PhishingKeywords: cfg.GetStringSlice("triage.phishing_keywords"),
	})

	var rng *rand.Rand
	if seed := cfg.GetInt64("triage.jitter_seed"); seed != 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	classifier := core.NewHeuristicClassifier(rules, rng, logger)

	if *urlInput != "" {
		os.Exit(checkURL(classifier, *urlInput))
	}
	os.Exit(checkEmail(cfg, rules, classifier, logger))
}

func checkURL(classifier *core.HeuristicClassifier, raw string) int {
	fmt.Printf("\n=== URL ===\n%s\n", raw)

	result, err := classifier.ClassifyURL(raw)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("\nValidation error: %s\n", verr.Reason)
			return 3
		}
		fmt.Printf("\nError: %v\n", err)
		return 3
	}

	printResult(result)
	return exitCode(result.Verdict)
}

func checkEmail(cfg *config.Config, rules *core.Ruleset, classifier *core.HeuristicClassifier, logger *zap.Logger) int {
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	email := &core.Email{
		From:    msg.Header.Get("From"),
		To:      strings.Split(msg.Header.Get("To"), ","),
		Subject: msg.Header.Get("Subject"),
		Body:    string(bodyBytes),
		Headers: map[string][]string(msg.Header),
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.From)
	fmt.Printf("To: %s\n", msg.Header.Get("To"))
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))

	checker := allowlist.NewChecker(rules.AllowedDomains, logger)
	if checker.IsAllowedSender(email.From) {
		fmt.Printf("\n=== Results ===\n")
		fmt.Printf("Verdict: safe (sender domain is allow-listed)\n")
		return 0
	}

	startTime := time.Now()
	result := analyzeEmail(cfg, classifier, logger, email)
	duration := time.Since(startTime)

	printResult(result)
	fmt.Printf("Processing time: %v\n", duration)
	return exitCode(result.Verdict)
}

// analyzeEmail delegates to the configured external analyzer and falls
// back to the local classifier on any failure.
func analyzeEmail(cfg *config.Config, classifier *core.HeuristicClassifier, logger *zap.Logger, email *core.Email) *core.ClassificationResult {
	if cfg.GetLLM().Provider == "none" {
		return classifier.ClassifyEmail(email.From, email.Subject, email.Body)
	}

	analyzerFactory := factory.NewAnalyzerFactory(cfg, logger, utils.NewTextProcessor(logger))
	analyzer, err := analyzerFactory.CreateAnalyzer()
	if err != nil {
		logger.Warn("Failed to create analyzer, using heuristic classifier", zap.Error(err))
		return classifier.ClassifyEmail(email.From, email.Subject, email.Body)
	}
	if analyzer == nil {
		return classifier.ClassifyEmail(email.From, email.Subject, email.Body)
	}
	defer func() {
		if closer, ok := analyzer.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := analyzer.AnalyzeEmail(ctx, email)
	if err != nil {
		logger.Warn("External analyzer failed, using heuristic classifier", zap.Error(err))
		return classifier.ClassifyEmail(email.From, email.Subject, email.Body)
	}
	return result
}

func printResult(result *core.ClassificationResult) {
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Verdict: %s\n", result.Verdict)
	fmt.Printf("Confidence: %d\n", result.Confidence)
	fmt.Printf("Source: %s\n", result.Source)
	if len(result.Indicators) > 0 {
		fmt.Printf("Indicators:\n")
		for _, indicator := range result.Indicators {
			fmt.Printf("  - %s\n", indicator)
		}
	}
	if len(result.SuspiciousLinks) > 0 {
		fmt.Printf("Suspicious links:\n")
		for _, link := range result.SuspiciousLinks {
			fmt.Printf("  - %s: %s\n", link.URL, link.Reason)
		}
	}
	fmt.Printf("Recommended action: %s\n", result.RecommendedAction)
}

func exitCode(verdict core.Verdict) int {
	switch verdict.Severity() {
	case 0:
		return 0
	case 1:
		return 1
	default:
		return 2
	}
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)

	switch *provider {
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	}

	if *allowDomains != "" {
		domains := strings.Split(*allowDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("triage.allowed_domains", domains)
	} else {
		v.Set("triage.allowed_domains", []string{})
	}

	v.Set("triage.jitter_seed", *jitterSeed)

	return config.NewFromViper(v)
}
