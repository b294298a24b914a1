package submission

import (
	"context"

	"github.com/google/uuid"

	"postapi/internal/hashing"
	"postapi/internal/logger"
	"postapi/internal/provider"
	"postapi/internal/queue"
	"postapi/pkg/errors"
	"postapi/pkg/metrics"
)

// Request is one provider submission as received over HTTP.
type Request struct {
	UUID       string
	Bundle     string
	ProviderID string
	Secret     string
	Payload    map[string]interface{}
}

// Authenticator resolves a provider from its id and shared secret. It returns
// nil, nil when the provider is unknown or the secret is wrong.
type Authenticator interface {
	Authenticate(ctx context.Context, id, secret string) (*provider.Provider, error)
}

// BundleSet tells which bundles have a processor.
type BundleSet interface {
	Bundles() []string
}

type Service interface {
	Submit(ctx context.Context, req Request) (string, error)
	Bundles() []string
}

type serviceImpl struct {
	queue   queue.Queue
	auth    Authenticator
	bundles BundleSet
	hasher  *hashing.Hasher
	logger  logger.Logger
}

func NewService(q queue.Queue, auth Authenticator, bundles BundleSet, hasher *hashing.Hasher, log logger.Logger) Service {
	if hasher == nil {
		hasher = hashing.NewHasher()
	}
	return &serviceImpl{
		queue:   q,
		auth:    auth,
		bundles: bundles,
		hasher:  hasher,
		logger:  log,
	}
}

func (s *serviceImpl) Bundles() []string {
	return s.bundles.Bundles()
}

func (s *serviceImpl) supports(bundle string) bool {
	for _, b := range s.bundles.Bundles() {
		if b == bundle {
			return true
		}
	}
	return false
}

// Submit authenticates the provider, fingerprints the payload and queues it
// under req.UUID, replacing any pending submission with the same uuid.
func (s *serviceImpl) Submit(ctx context.Context, req Request) (string, error) {
	if req.UUID == "" {
		metrics.IncSubmission(req.Bundle, "rejected")
		return "", errors.ErrRejectedEnqueue.WithMessage("uuid is required")
	}
	if _, err := uuid.Parse(req.UUID); err != nil {
		metrics.IncSubmission(req.Bundle, "rejected")
		return "", errors.ErrRejectedEnqueue.WithMessage("invalid uuid %q", req.UUID).WithDetail("uuid", req.UUID)
	}
	if !s.supports(req.Bundle) {
		metrics.IncSubmission(req.Bundle, "rejected")
		return "", errors.ErrUnsupportedBundle.WithMessage("bundle %s is not supported", req.Bundle).WithDetail("bundle", req.Bundle)
	}
	if len(req.Payload) == 0 {
		metrics.IncSubmission(req.Bundle, "rejected")
		return "", errors.ErrRejectedEnqueue.WithMessage("submission body is empty")
	}

	prov, err := s.auth.Authenticate(ctx, req.ProviderID, req.Secret)
	if err != nil {
		metrics.IncSubmission(req.Bundle, "error")
		return "", errors.ErrServiceUnavailable.WithMessage("provider lookup failed").WithCause(err)
	}
	if prov == nil {
		metrics.IncSubmission(req.Bundle, "unauthorized")
		s.logger.WarnwCtx(ctx, "Rejected submission with invalid provider credentials",
			"provider_id", req.ProviderID,
			"bundle", req.Bundle,
		)
		return "", errors.ErrUnauthorized
	}

	payload := make(map[string]interface{}, len(req.Payload)+2)
	for k, v := range req.Payload {
		payload[k] = v
	}
	payload["provider"] = prov.ID
	payload["user"] = prov.GetUserID()

	hash, err := s.hasher.Hash(payload)
	if err != nil {
		metrics.IncSubmission(req.Bundle, "rejected")
		return "", errors.ErrRejectedEnqueue.WithMessage("payload cannot be hashed: %v", err)
	}

	id, err := s.queue.Enqueue(ctx, &queue.Submission{
		UUID:        req.UUID,
		Bundle:      req.Bundle,
		ProviderID:  prov.ID,
		Payload:     payload,
		ContentHash: hash,
	})
	if err != nil {
		metrics.IncSubmission(req.Bundle, "error")
		return "", errors.ErrServiceUnavailable.WithMessage("failed to queue submission").WithCause(err)
	}

	metrics.IncSubmission(req.Bundle, "accepted")
	s.logger.InfowCtx(ctx, "Submission queued",
		"uuid", id,
		"bundle", req.Bundle,
		"provider_id", prov.ID,
		"content_hash", hash,
	)

	return id, nil
}
