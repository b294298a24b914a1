package processor

import (
	"context"
	"sort"
	"sync"
	"time"

	"postapi/internal/provider"
	"postapi/internal/queue"
)

type Status string

const (
	StatusCreated          Status = "created"
	StatusUpdated          Status = "updated"
	StatusSkippedDuplicate Status = "skipped-duplicate"
	StatusError            Status = "error"
)

const EntityTypeNode = "node"

// Result is what a processor did with a submission.
type Result struct {
	Status   Status `json:"status"`
	EntityID uint   `json:"entity_id"`
}

// Outcome is the per-submission record produced by a drain run.
type Outcome struct {
	UUID         string        `json:"uuid" bson:"uuid"`
	Bundle       string        `json:"bundle" bson:"bundle"`
	ProviderID   string        `json:"provider_id" bson:"provider_id"`
	Status       Status        `json:"status" bson:"status"`
	EntityID     uint          `json:"entity_id,omitempty" bson:"entity_id,omitempty"`
	Message      string        `json:"message,omitempty" bson:"message,omitempty"`
	NotifyEmails []string      `json:"notify_emails,omitempty" bson:"notify_emails,omitempty"`
	ProcessedAt  time.Time     `json:"processed_at" bson:"processed_at"`
	Duration     time.Duration `json:"duration_ns" bson:"duration_ns"`
}

// Processor turns a queued submission of one bundle into stored content.
type Processor interface {
	EntityType() string
	Bundle() string
	Process(ctx context.Context, sub *queue.Submission) (*Result, error)
}

// ProviderLookup resolves the provider a submission was made by.
type ProviderLookup interface {
	GetProvider(ctx context.Context, id string) (*provider.Provider, error)
}

// Registry maps bundles to processors. It is filled once at startup.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
}

func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{processors: make(map[string]Processor, len(processors))}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	r.processors[p.Bundle()] = p
	r.mu.Unlock()
}

func (r *Registry) GetProcessorForBundle(bundle string) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[bundle]
	return p, ok
}

func (r *Registry) Bundles() []string {
	r.mu.RLock()
	bundles := make([]string, 0, len(r.processors))
	for b := range r.processors {
		bundles = append(bundles, b)
	}
	r.mu.RUnlock()

	sort.Strings(bundles)
	return bundles
}
