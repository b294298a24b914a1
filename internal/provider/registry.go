package provider

import (
	"context"
	"sync"

	"postapi/internal/logger"
	"postapi/pkg/metrics"
)

// Registry resolves provider ids through a Store and caches the hits for the
// lifetime of the registry or until Reload.
type Registry struct {
	store  Store
	logger logger.Logger

	mu    sync.RWMutex
	cache map[string]*Provider
}

func NewRegistry(store Store, log logger.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: log,
		cache:  make(map[string]*Provider),
	}
}

// GetProvider returns nil, nil for an empty or unknown id. Only backend
// failures produce an error.
func (r *Registry) GetProvider(ctx context.Context, id string) (*Provider, error) {
	if id == "" {
		return nil, nil
	}

	r.mu.RLock()
	p, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := r.store.GetProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		r.logger.DebugwCtx(ctx, "Provider not found", "provider_id", id)
		return nil, nil
	}

	r.mu.Lock()
	if cached, ok := r.cache[id]; ok {
		p = cached
	} else {
		r.cache[id] = p
	}
	size := len(r.cache)
	r.mu.Unlock()

	metrics.SetProviderCacheSize(size)
	return p, nil
}

// Authenticate resolves the provider and checks its secret. It returns nil
// when the provider is unknown or the secret does not match.
func (r *Registry) Authenticate(ctx context.Context, id, secret string) (*Provider, error) {
	p, err := r.GetProvider(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	if !p.ValidateSecret(secret) {
		return nil, nil
	}
	return p, nil
}

// Reload drops every cached provider so the next lookup hits the store.
func (r *Registry) Reload(ctx context.Context) error {
	r.mu.Lock()
	dropped := len(r.cache)
	r.cache = make(map[string]*Provider)
	r.mu.Unlock()

	metrics.SetProviderCacheSize(0)
	r.logger.InfowCtx(ctx, "Provider cache cleared", "dropped", dropped)
	return nil
}
