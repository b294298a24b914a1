package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postapi/internal/config"
	"postapi/internal/hashing"
	"postapi/internal/logger"
	"postapi/internal/provider"
	"postapi/internal/queue"
	"postapi/pkg/bootstrap"
	"postapi/pkg/errors"
	"postapi/pkg/migrations"
)

const (
	testUUID   = "0b9e8b53-7f3c-4f0e-9a77-4c6a1a8c2f10"
	testSecret = "s3cret"
)

type bundleList []string

func (b bundleList) Bundles() []string { return b }

type fixture struct {
	queue   *queue.SQLStore
	service Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := bootstrap.OpenSQLite(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Up(ctx, db, migrations.DialectSQLite))

	q, err := queue.NewSQLStore(db, migrations.DialectSQLite, time.Hour)
	require.NoError(t, err)

	hash, err := provider.HashSecret(testSecret)
	require.NoError(t, err)
	providers := provider.NewRegistry(provider.NewStaticStore([]config.ProviderConfig{
		{ID: "provider-1", SecretHash: hash, UserID: 7},
	}), logger.NopLogger())

	svc := NewService(q, providers, bundleList{"job", "report", "training"}, hashing.NewHasher(), logger.NopLogger())
	return fixture{queue: q, service: svc}
}

func validRequest() Request {
	return Request{
		UUID:       testUUID,
		Bundle:     "report",
		ProviderID: "provider-1",
		Secret:     testSecret,
		Payload: map[string]interface{}{
			"title":  "Drought bulletin",
			"source": []interface{}{json.Number("1503")},
		},
	}
}

func TestSubmit_Queues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.service.Submit(ctx, validRequest())
	require.NoError(t, err)
	assert.Equal(t, testUUID, id)

	items, err := f.queue.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "report", item.Bundle)
	assert.Equal(t, "provider-1", item.ProviderID)
	assert.Equal(t, "provider-1", item.Payload["provider"])
	assert.Equal(t, json.Number("7"), item.Payload["user"])

	want, err := hashing.GenerateHash(validRequest().Payload, nil)
	require.NoError(t, err)
	assert.Equal(t, want, item.ContentHash, "provider and user never contribute to the hash")
}

func TestSubmit_ResubmissionReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Payload["title"] = "Drought bulletin, revised"
	_, err = f.service.Submit(ctx, req)
	require.NoError(t, err)

	count, err := f.queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	items, err := f.queue.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "Drought bulletin, revised", items[0].Payload["title"])
	assert.Equal(t, int64(2), items[0].Version)
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
		status int
		code   string
	}{
		{"empty uuid", func(r *Request) { r.UUID = "" }, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"malformed uuid", func(r *Request) { r.UUID = "not-a-uuid" }, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"unsupported bundle", func(r *Request) { r.Bundle = "blog_post" }, http.StatusNotFound, "UNSUPPORTED_BUNDLE"},
		{"empty payload", func(r *Request) { r.Payload = nil }, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"wrong secret", func(r *Request) { r.Secret = "guess" }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown provider", func(r *Request) { r.ProviderID = "nobody" }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"missing secret", func(r *Request) { r.Secret = "" }, http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.service.Submit(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.status, errors.ToHTTPStatus(err))
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)

			count, err := f.queue.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}
