package processor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"postapi/internal/content"
	"postapi/internal/hashing"
	"postapi/internal/queue"
	"postapi/pkg/cel"
	apperrors "postapi/pkg/errors"
)

// document is implemented by the typed payload of every bundle.
type document interface {
	DocumentURL() string
	DocumentTitle() string
	Sources() []int
	// AttachmentURLs lists file and image URLs that must also match the provider pattern.
	AttachmentURLs() []string
}

// ruleEvaluator is shared by every processor so compiled provider rules are
// cached once per process.
var ruleEvaluator = sync.OnceValues(cel.NewEvaluator)

// volatileFields are added at intake and never stored on the entity.
var volatileFields = []string{"provider", "user"}

// documentProcessor holds the create/update/skip pipeline shared by all bundles.
type documentProcessor[T document] struct {
	bundle    string
	providers ProviderLookup
	repo      content.Repository
	validate  *validator.Validate
}

func newDocumentProcessor[T document](bundle string, providers ProviderLookup, repo content.Repository) *documentProcessor[T] {
	return &documentProcessor[T]{
		bundle:    bundle,
		providers: providers,
		repo:      repo,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (p *documentProcessor[T]) EntityType() string {
	return EntityTypeNode
}

func (p *documentProcessor[T]) Bundle() string {
	return p.bundle
}

func (p *documentProcessor[T]) Process(ctx context.Context, sub *queue.Submission) (*Result, error) {
	doc, err := p.decode(sub.Payload)
	if err != nil {
		return nil, err
	}

	prov, err := p.providers.GetProvider(ctx, sub.ProviderID)
	if err != nil {
		return nil, apperrors.ErrProcessing.WithMessage("failed to load provider %s", sub.ProviderID).WithCause(err)
	}
	if prov == nil {
		return nil, apperrors.ErrProcessing.WithMessage("unknown provider %s", sub.ProviderID)
	}

	urls := append([]string{doc.DocumentURL()}, doc.AttachmentURLs()...)
	for _, u := range urls {
		if !prov.MatchURL(u) {
			return nil, apperrors.ErrProcessing.WithMessage("url %s does not match the pattern of provider %s", u, prov.ID)
		}
	}
	for _, source := range doc.Sources() {
		if !prov.AllowsSource(source) {
			return nil, apperrors.ErrProcessing.WithMessage("source %d is not allowed for provider %s", source, prov.ID)
		}
	}

	if err := p.checkRules(ctx, prov.ID, prov.Rules, sub); err != nil {
		return nil, err
	}

	key, err := LogicalKey(doc.DocumentURL(), doc.Sources())
	if err != nil {
		return nil, apperrors.ErrProcessing.WithMessage("failed to compute logical key").WithCause(err)
	}

	entity := &content.Entity{
		EntityType:  p.EntityType(),
		Bundle:      p.bundle,
		LogicalKey:  key,
		UUID:        sub.UUID,
		Title:       doc.DocumentTitle(),
		URL:         doc.DocumentURL(),
		Fields:      storedFields(sub.Payload),
		ContentHash: sub.ContentHash,
		ProviderID:  prov.ID,
		UserID:      prov.GetUserID(),
	}

	existing, err := p.repo.FindByLogicalKey(ctx, p.bundle, key)
	if err != nil {
		return nil, storageError(err)
	}

	if existing == nil {
		entity.RevisionLog = content.RevisionLogCreated
		created, err := p.repo.Create(ctx, entity)
		if err != nil {
			return nil, storageError(err)
		}
		if created {
			return &Result{Status: StatusCreated, EntityID: entity.ID}, nil
		}

		// Created concurrently by another drain run.
		existing, err = p.repo.FindByLogicalKey(ctx, p.bundle, key)
		if err != nil {
			return nil, storageError(err)
		}
		if existing == nil {
			return nil, apperrors.ErrProcessing.WithMessage("content for %s vanished after a conflicting create", doc.DocumentURL())
		}
	}

	if existing.ContentHash == sub.ContentHash {
		return &Result{Status: StatusSkippedDuplicate, EntityID: existing.ID}, nil
	}

	entity.ID = existing.ID
	entity.CreatedAt = existing.CreatedAt
	entity.RevisionLog = content.RevisionLogUpdated
	if err := p.repo.Update(ctx, entity); err != nil {
		return nil, storageError(err)
	}

	return &Result{Status: StatusUpdated, EntityID: entity.ID}, nil
}

func (p *documentProcessor[T]) checkRules(ctx context.Context, providerID string, rules []string, sub *queue.Submission) error {
	if len(rules) == 0 {
		return nil
	}

	eval, err := ruleEvaluator()
	if err != nil {
		return apperrors.ErrProcessing.WithMessage("rule evaluator unavailable").WithCause(err)
	}

	rule, err := eval.FirstRejecting(ctx, rules, cel.Input{
		UUID:     sub.UUID,
		Bundle:   p.bundle,
		Provider: providerID,
		Payload:  sub.Payload,
	})
	if err != nil {
		return apperrors.ErrProcessing.WithMessage("rule %q of provider %s failed: %v", rule, providerID, err)
	}
	if rule != "" {
		return apperrors.ErrProcessing.WithMessage("rejected by rule %q of provider %s", rule, providerID)
	}
	return nil
}

func (p *documentProcessor[T]) decode(payload map[string]interface{}) (T, error) {
	var doc T

	data, err := json.Marshal(payload)
	if err != nil {
		return doc, apperrors.ErrProcessing.WithMessage("malformed %s payload", p.bundle).WithCause(err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, apperrors.ErrProcessing.WithMessage("malformed %s payload: %v", p.bundle, err)
	}

	if err := p.validate.Struct(doc); err != nil {
		return doc, apperrors.ErrProcessing.WithMessage("invalid %s payload: %s", p.bundle, validationMessage(err))
	}

	return doc, nil
}

// LogicalKey identifies a document by its URL and the set of its sources.
func LogicalKey(url string, sources []int) (string, error) {
	ids := make([]interface{}, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s)
	}
	return hashing.GenerateHash(map[string]interface{}{
		"url":    strings.TrimSpace(url),
		"source": ids,
	}, nil)
}

func storedFields(payload map[string]interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		fields[k] = v
	}
	for _, k := range volatileFields {
		delete(fields, k)
	}
	return fields
}

func storageError(err error) error {
	return apperrors.ErrProcessing.WithMessage("content store failure: %v", err).WithCause(err)
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+" failed on "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
