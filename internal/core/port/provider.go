package port

import (
	"context"
	"net/http"
	"pixrelay/internal/core/domain"
)

type Provider interface {
	// Name returns the registry key of the provider, e.g. "wsrv" or "direct".
	Name() string
	// BuildRequest builds the GET request that acquires target through this provider. It must not perform I/O.
	BuildRequest(ctx context.Context, target string, params domain.RelayParams) (*http.Request, error)
}

type ProviderRegistry interface {
	// Register adds a provider under its name, replacing any previous one.
	Register(provider Provider)
	// Get retrieves a provider by name or returns domain.ErrProviderNotFound.
	Get(name string) (Provider, error)
	// ListProviders returns the names of all registered providers.
	ListProviders() []string
}
