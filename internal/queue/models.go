package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Submission is a queued Post API payload waiting to be processed.
type Submission struct {
	UUID        string                 `json:"uuid"`
	Bundle      string                 `json:"bundle"`
	ProviderID  string                 `json:"provider_id"`
	Payload     map[string]interface{} `json:"payload"`
	ContentHash string                 `json:"content_hash"`
	CreatedAt   time.Time              `json:"created_at"`
	Seq         int64                  `json:"seq"`
	Version     int64                  `json:"version"`

	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
}

// Queue stores submissions until a drain run processes them.
//
// Claim returns nil, nil when nothing is claimable. Delete only removes the
// record when its version still matches, so a re-submission that arrived
// while the old version was being processed is kept for the next run.
type Queue interface {
	Enqueue(ctx context.Context, s *Submission) (string, error)
	Claim(ctx context.Context, bundles ...string) (*Submission, error)
	Delete(ctx context.Context, s *Submission) error
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]*Submission, error)
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, mostly for lease tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func encodePayload(payload map[string]interface{}) (string, error) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}

func decodePayload(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return payload, nil
}

func unixPtr(v int64) *time.Time {
	t := time.Unix(v, 0).UTC()
	return &t
}
