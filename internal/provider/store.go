package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/lib/pq"

	"postapi/internal/config"
)

// Store loads provider definitions. A missing provider is reported as nil, nil.
type Store interface {
	GetProvider(ctx context.Context, id string) (*Provider, error)
}

// StaticStore serves providers declared in the configuration file.
type StaticStore struct {
	mu        sync.RWMutex
	providers map[string]config.ProviderConfig
}

func NewStaticStore(providers []config.ProviderConfig) *StaticStore {
	s := &StaticStore{}
	s.Replace(providers)
	return s
}

// Replace swaps the provider definitions, e.g. after the config file changed.
func (s *StaticStore) Replace(providers []config.ProviderConfig) {
	m := make(map[string]config.ProviderConfig, len(providers))
	for _, p := range providers {
		m[p.ID] = p
	}

	s.mu.Lock()
	s.providers = m
	s.mu.Unlock()
}

func (s *StaticStore) GetProvider(_ context.Context, id string) (*Provider, error) {
	s.mu.RLock()
	p, ok := s.providers[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	return &Provider{
		ID:             p.ID,
		Name:           p.Name,
		SecretHash:     p.SecretHash,
		URLPattern:     p.URLPattern,
		AllowedSources: append([]int(nil), p.AllowedSources...),
		NotifyEmails:   append([]string(nil), p.NotifyEmails...),
		UserID:         p.UserID,
		Rules:          append([]string(nil), p.Rules...),
	}, nil
}

// PostgresStore reads providers from the post_api_providers table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProvider(ctx context.Context, id string) (*Provider, error) {
	query := `
		SELECT id, name, secret_hash, url_pattern, allowed_sources, notify_emails, user_id, rules
		FROM post_api_providers
		WHERE id = $1
	`

	var (
		p              Provider
		allowedSources pq.Int64Array
		notifyEmails   pq.StringArray
		rules          pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SecretHash, &p.URLPattern,
		&allowedSources, &notifyEmails, &p.UserID, &rules,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load provider %s: %w", id, err)
	}

	p.AllowedSources = make([]int, len(allowedSources))
	for i, source := range allowedSources {
		p.AllowedSources[i] = int(source)
	}
	p.NotifyEmails = []string(notifyEmails)
	p.Rules = []string(rules)

	return &p, nil
}

// Save upserts a provider definition.
func (s *PostgresStore) Save(ctx context.Context, p *Provider) error {
	query := `
		INSERT INTO post_api_providers (id, name, secret_hash, url_pattern, allowed_sources, notify_emails, user_id, rules, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			secret_hash = EXCLUDED.secret_hash,
			url_pattern = EXCLUDED.url_pattern,
			allowed_sources = EXCLUDED.allowed_sources,
			notify_emails = EXCLUDED.notify_emails,
			user_id = EXCLUDED.user_id,
			rules = EXCLUDED.rules,
			updated_at = NOW()
	`

	sources := make(pq.Int64Array, len(p.AllowedSources))
	for i, source := range p.AllowedSources {
		sources[i] = int64(source)
	}

	// A nil pq array is written as NULL.
	emails := append(pq.StringArray{}, p.NotifyEmails...)
	rules := append(pq.StringArray{}, p.Rules...)

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.SecretHash, p.URLPattern,
		sources, emails, p.UserID, rules,
	)
	if err != nil {
		return fmt.Errorf("failed to save provider %s: %w", p.ID, err)
	}
	return nil
}
