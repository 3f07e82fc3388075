package cli

import (
	"fmt"
	"net/http"
	"pixrelay/internal/adapters/codec"
	"pixrelay/internal/adapters/codec/vips"
	"pixrelay/internal/adapters/provider"
	"pixrelay/internal/config"
	"pixrelay/internal/core/port"
	"pixrelay/internal/core/service"

	"github.com/rs/zerolog/log"
)

// app holds the wired core shared by every front end.
type app struct {
	orchestrator *service.Orchestrator
	codec        port.Codec
}

func newApp(cfg config.Config) (*app, error) {
	recipe, err := cfg.Recipe.TranscodeRecipe()
	if err != nil {
		return nil, err
	}

	c, err := codec.New(cfg.Codec.Backend, recipe.Format)
	if err != nil {
		return nil, fmt.Errorf("failed initializing codec: %w", err)
	}

	registry := &service.Registry{}
	provider.RegisterDefaults(registry, cfg.Relays.Endpoints, provider.BrowserHeaders)

	plan, err := service.BuildPlan(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if err := service.CheckProviders(plan, registry); err != nil {
		return nil, err
	}

	acquirer := service.NewHTTPAcquirer(&http.Client{}, registry, service.SizeBounds{
		Min: cfg.Limits.MinBytes,
		Max: cfg.Limits.MaxBytes,
	})
	runner := service.NewTierRunner(acquirer, service.NewPipeline(c, cfg.Codec.MaxConcurrent))

	o, err := service.NewOrchestrator(plan, runner, service.WithSelector(service.NewSelector(cfg.Orchestrator)))
	if err != nil {
		return nil, err
	}

	stages := make([]string, 0, len(plan))
	for _, s := range plan {
		stages = append(stages, s.Name+"("+string(s.Mode)+")")
	}
	log.Info().
		Str("codec", c.Name()).
		Strs("stages", stages).
		Strs("providers", registry.ListProviders()).
		Dur("timeout", cfg.Orchestrator.Timeout).
		Msg("orchestrator ready")

	return &app{orchestrator: o, codec: c}, nil
}

func (a *app) close() {
	if a.codec.Name() == vips.Name {
		vips.Shutdown()
	}
}
