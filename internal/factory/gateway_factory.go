package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/phish-triage/internal/adapters/filter"
	"github.com/mikey/phish-triage/internal/config"
	"github.com/mikey/phish-triage/internal/core"
	"github.com/mikey/phish-triage/internal/history"
	"github.com/mikey/phish-triage/internal/ports"
	"github.com/mikey/phish-triage/internal/web"
)

// GatewayFactory creates the scan-serving surfaces enabled in
// configuration.
type GatewayFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.TriageService
	store   *history.Store
	hub     *web.Hub
}

// NewGatewayFactory creates a new gateway factory
func NewGatewayFactory(cfg *config.Config, logger *zap.Logger, service *core.TriageService, store *history.Store, hub *web.Hub) *GatewayFactory {
	return &GatewayFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		store:   store,
		hub:     hub,
	}
}

// CreateGateways builds every enabled gateway.
func (f *GatewayFactory) CreateGateways() []ports.Gateway {
	var gateways []ports.Gateway

	if httpCfg := f.cfg.GetHTTP(); httpCfg.Enabled {
		gateways = append(gateways, web.NewServer(httpCfg.ListenAddress, f.service, f.store, f.hub, f.logger))
	}
	if smtpCfg := f.cfg.GetSMTP(); smtpCfg.Enabled {
		gateways = append(gateways, filter.NewSMTPFilter(f.service, f.logger, smtpCfg))
	}

	return gateways
}
