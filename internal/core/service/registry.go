package service

import (
	"fmt"
	"pixrelay/internal/core/domain"
	"pixrelay/internal/core/port"
	"sort"

	"github.com/rs/zerolog/log"
)

// Registry maps provider names to providers. It is filled at startup and only read afterwards.
type Registry struct {
	providers map[string]port.Provider
}

func (r *Registry) Register(provider port.Provider) {
	if r.providers == nil {
		r.providers = make(map[string]port.Provider)
	}

	log.Info().Str("provider", provider.Name()).Msg("adding provider to registry")
	r.providers[provider.Name()] = provider
}

func (r *Registry) Get(name string) (port.Provider, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}

	return provider, nil
}

func (r *Registry) ListProviders() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}
