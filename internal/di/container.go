package di

import (
	"math/rand"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/domainintel"
	"github.com/mikey/phish-triage/internal/allowlist"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/factory"
	"github.com/mikey/phish-triage/internal/history"
	"github.com/mikey/phish-triage/internal/logging"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/utils"
	"github.com/mikey/phish-triage/internal/web"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []interface{}{
		config.New,
		logging.InitLogger,
		utils.NewTextProcessor,
		factory.NewAnalyzerFactory,
		factory.NewCacheFactory,
		factory.NewGatewayFactory,

		// Heuristic rule tables, with config-supplied additions.
		buildRuleset,

		// Confidence jitter source. A configured seed makes runs
		// reproducible; seed 0 means seed from the clock.
		func(cfg *config.Config) *rand.Rand {
			seed := cfg.GetInt64("triage.jitter_seed")
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			return rand.New(rand.NewSource(seed))
		},

		func(rules *core.Ruleset, logger *zap.Logger) *allowlist.Checker {
			return allowlist.NewChecker(rules.AllowedDomains, logger)
		},

		core.NewHeuristicClassifier,

		func(f *factory.AnalyzerFactory) (core.Analyzer, error) {
			return f.CreateAnalyzer()
		},
		func(f *factory.CacheFactory) (core.CacheRepository, error) {
			return f.CreateCacheRepository()
		},

		func(cfg *config.Config, logger *zap.Logger) core.DomainIntel {
			if !cfg.GetBool("intel.enabled") {
				return nil
			}
			return domainintel.NewWhoisIntel(logger)
		},

		newTriageService,

		func(cfg *config.Config) *history.Store {
			return history.NewStore(cfg.GetInt("history.max_entries"))
		},
		web.NewHub,

		func(f *factory.GatewayFactory) []ports.Gateway {
			return f.CreateGateways()
		},
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, err
		}
	}

	return container, nil
}

// buildRuleset starts from the built-in tables and merges any
// config-supplied additions.
func buildRuleset(cfg *config.Config, logger *zap.Logger) *core.Ruleset {
	rules := core.DefaultRuleset()

	overrides := core.RulesetOverrides{
		AllowedDomains:   cfg.GetStringSlice("triage.allowed_domains"),
		UrgencyKeywords:  cfg.GetStringSlice("triage.urgency_keywords"),
		PhishingKeywords: cfg.GetStringSlice("triage.phishing_keywords"),
	}
	rules.Merge(overrides)

	if len(overrides.AllowedDomains)+len(overrides.UrgencyKeywords)+len(overrides.PhishingKeywords) > 0 {
		logger.Info("Merged rule overrides from configuration",
			zap.Strings("allowed_domains", overrides.AllowedDomains),
			zap.Strings("urgency_keywords", overrides.UrgencyKeywords),
			zap.Strings("phishing_keywords", overrides.PhishingKeywords))
	}

	return rules
}

func newTriageService(
	cfg *config.Config,
	analyzer core.Analyzer,
	heuristic *core.HeuristicClassifier,
	cache core.CacheRepository,
	intel core.DomainIntel,
	allow *allowlist.Checker,
	rules *core.Ruleset,
	logger *zap.Logger,
	cacheFactory *factory.CacheFactory,
) (*core.TriageService, error) {
	cacheTTL, err := cacheFactory.GetCacheTTL()
	if err != nil {
		return nil, err
	}
	minDomainAge := time.Duration(cfg.GetInt("intel.min_age_days")) * 24 * time.Hour

	return core.NewTriageService(
		analyzer,
		heuristic,
		cache,
		intel,
		allow,
		rules,
		logger,
		cacheFactory.IsCacheEnabled(),
		cacheTTL,
		minDomainAge,
	), nil
}
