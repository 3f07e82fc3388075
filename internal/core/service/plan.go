package service

import (
	"fmt"
	"pixrelay/internal/config"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
)

// BuildPlan turns the static configuration into the orchestrator's plan: an optional origin
// passthrough stage, the relay stage in the configured mode, and the local transcode stage.
func BuildPlan(cfg config.Config) (domain.Plan, error) {
	recipe, err := cfg.Recipe.TranscodeRecipe()
	if err != nil {
		return nil, err
	}

	mode, err := domain.ParseStageMode(cfg.Orchestrator.Mode)
	if err != nil {
		return nil, err
	}

	var plan domain.Plan

	if cfg.Limits.PassthroughMaxBytes > 0 {
		plan = append(plan, domain.Stage{
			Name: "origin",
			Mode: domain.Sequential,
			Tiers: []domain.TierSpec{{
				Name:     "origin",
				Kind:     domain.DirectFetch,
				Provider: domain.DirectProvider,
				Accept: domain.AllOf(
					domain.LargerThan(cfg.Limits.MinAcceptBytes),
					domain.AtMost(cfg.Limits.PassthroughMaxBytes),
				),
			}},
		})
	}

	relayAccept := domain.LargerThan(cfg.Limits.MinAcceptBytes)
	if cfg.Relays.RequireFormat {
		relayAccept = domain.AllOf(relayAccept, domain.MIMEContains(string(recipe.Format)))
	}

	params := domain.RelayParams{Width: recipe.Width, Quality: recipe.Quality, Format: recipe.Format}
	relay := func(name string, priority int) domain.TierSpec {
		return domain.TierSpec{
			Name:     name,
			Kind:     domain.RelayProxy,
			Provider: name,
			Params:   params,
			Accept:   relayAccept,
			Priority: priority,
		}
	}

	if len(cfg.Relays.Enabled) > 0 {
		stage := domain.Stage{Name: "relays", Mode: mode}
		for i, name := range cfg.Relays.Enabled {
			stage.Tiers = append(stage.Tiers, relay(name, i))
		}
		if mode == domain.Rotate && cfg.Relays.Backup != "" {
			backup := relay(cfg.Relays.Backup, len(cfg.Relays.Enabled))
			stage.Backup = &backup
		}
		plan = append(plan, stage)
	}

	plan = append(plan, domain.Stage{
		Name: "local",
		Mode: domain.Sequential,
		Tiers: []domain.TierSpec{{
			Name:     "local",
			Kind:     domain.LocalTranscode,
			Provider: domain.DirectProvider,
			Accept:   domain.NonEmpty(),
			Recipe:   &recipe,
		}},
	})

	return plan, plan.Validate()
}

// CheckProviders verifies that every tier of plan refers to a registered provider.
func CheckProviders(plan domain.Plan, providers port.ProviderRegistry) error {
	for _, stage := range plan {
		tiers := stage.Tiers
		if stage.Backup != nil {
			tiers = append(tiers[:len(tiers):len(tiers)], *stage.Backup)
		}
		for _, tier := range tiers {
			if _, err := providers.Get(tier.Provider); err != nil {
				return fmt.Errorf("stage %s tier %s: %w", stage.Name, tier.Name, err)
			}
		}
	}

	return nil
}

// NewSelector returns the rotation policy named in the configuration.
func NewSelector(cfg config.Orchestrator) port.Selector {
	if cfg.Selector == "random" {
		return NewRandomSelector(cfg.Seed)
	}

	return NewRoundRobin()
}
