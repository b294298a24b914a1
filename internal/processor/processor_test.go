package processor

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"postapi/internal/config"
	"postapi/internal/content"
	"postapi/internal/logger"
	"postapi/internal/provider"
	"postapi/internal/queue"
	apperrors "postapi/pkg/errors"
)

func newContentRepository(t *testing.T) content.Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "content.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, content.Migrate(db))

	return content.NewRepository(db)
}

func newProviders() *provider.Registry {
	store := provider.NewStaticStore([]config.ProviderConfig{
		{
			ID:             "provider-1",
			Name:           "Example",
			URLPattern:     `^https://example\.org/`,
			AllowedSources: []int{1503, 2},
		},
		{
			ID:   "provider-open",
			Name: "Open",
		},
		{
			ID:    "provider-english",
			Name:  "English only",
			Rules: []string{`267 in payload.language`, `size(payload.title) <= 120`},
		},
		{
			ID:    "provider-broken-rule",
			Name:  "Broken rule",
			Rules: []string{`payload.title`},
		},
	})
	return provider.NewRegistry(store, logger.NopLogger())
}

func reportPayload() map[string]interface{} {
	return map[string]interface{}{
		"title":     "Flood response update",
		"body":      "Water levels are receding.",
		"url":       "https://example.org/reports/42",
		"source":    []interface{}{json.Number("1503")},
		"language":  []interface{}{json.Number("267")},
		"format":    []interface{}{json.Number("10")},
		"published": "2024-05-01",
		"file": []interface{}{
			map[string]interface{}{"url": "https://example.org/files/42.pdf", "description": "Full report"},
		},
		"provider": "provider-1",
	}
}

func submission(uuid string, payload map[string]interface{}, hash string) *queue.Submission {
	return &queue.Submission{
		UUID:        uuid,
		Bundle:      BundleReport,
		ProviderID:  "provider-1",
		Payload:     payload,
		ContentHash: hash,
	}
}

func requireProcessingError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsProcessing(err), "expected processing error, got %v", err)
	assert.Contains(t, err.Error(), contains)
}

func TestRegistry(t *testing.T) {
	repo := newContentRepository(t)
	registry := NewRegistry(DefaultProcessors(newProviders(), repo)...)

	assert.Equal(t, []string{BundleJob, BundleReport, BundleTraining}, registry.Bundles())

	p, ok := registry.GetProcessorForBundle(BundleReport)
	require.True(t, ok)
	assert.Equal(t, BundleReport, p.Bundle())
	assert.Equal(t, EntityTypeNode, p.EntityType())

	_, ok = registry.GetProcessorForBundle("blog_post")
	assert.False(t, ok)
}

func TestReportProcessor_CreateSkipUpdate(t *testing.T) {
	repo := newContentRepository(t)
	p := NewReportProcessor(newProviders(), repo)
	ctx := context.Background()

	res, err := p.Process(ctx, submission("u-1", reportPayload(), "hash-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
	assert.NotZero(t, res.EntityID)

	key, err := LogicalKey("https://example.org/reports/42", []int{1503})
	require.NoError(t, err)
	stored, err := repo.FindByLogicalKey(ctx, BundleReport, key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, content.RevisionLogCreated, stored.RevisionLog)
	assert.Equal(t, "hash-1", stored.ContentHash)
	assert.Equal(t, "Flood response update", stored.Title)
	assert.Equal(t, 2, stored.UserID, "providers without a user id post as the system user")
	assert.NotContains(t, stored.Fields, "provider")

	// Same content under a new uuid, e.g. a webhook redelivery.
	dup, err := p.Process(ctx, submission("u-2", reportPayload(), "hash-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedDuplicate, dup.Status)
	assert.Equal(t, res.EntityID, dup.EntityID)

	unchanged, err := repo.FindByLogicalKey(ctx, BundleReport, key)
	require.NoError(t, err)
	assert.Equal(t, "u-1", unchanged.UUID)
	assert.Equal(t, content.RevisionLogCreated, unchanged.RevisionLog)

	changed := reportPayload()
	changed["title"] = "Flood response update, week 2"
	upd, err := p.Process(ctx, submission("u-3", changed, "hash-2"))
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, upd.Status)
	assert.Equal(t, res.EntityID, upd.EntityID)

	updated, err := repo.FindByLogicalKey(ctx, BundleReport, key)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", updated.ContentHash)
	assert.Equal(t, "Flood response update, week 2", updated.Title)
	assert.Equal(t, content.RevisionLogUpdated, updated.RevisionLog)
	assert.Equal(t, "u-3", updated.UUID)
}

func TestTermID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    TermID
		wantErr bool
	}{
		{input: `1503`, want: 1503},
		{input: `1503.0`, want: 1503},
		{input: `1.503e3`, want: 1503},
		{input: `1503.25`, wantErr: true},
		{input: `"1503"`, wantErr: true},
		{input: `1e300`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var id TermID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestReportProcessor_AcceptsIntegralFloatIDs(t *testing.T) {
	repo := newContentRepository(t)
	p := NewReportProcessor(newProviders(), repo)
	ctx := context.Background()

	payload := reportPayload()
	payload["source"] = []interface{}{json.Number("1503.0")}
	payload["language"] = []interface{}{json.Number("267.0")}
	payload["format"] = []interface{}{json.Number("10.0")}

	res, err := p.Process(ctx, submission("u-1", payload, "hash-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	key, err := LogicalKey("https://example.org/reports/42", []int{1503})
	require.NoError(t, err)
	entity, err := repo.FindByLogicalKey(ctx, BundleReport, key)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, res.EntityID, entity.ID)
}

func TestReportProcessor_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(payload map[string]interface{}, sub *queue.Submission)
		contains string
	}{
		{
			name: "url outside provider pattern",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["url"] = "https://elsewhere.org/reports/42"
			},
			contains: "does not match the pattern",
		},
		{
			name: "file url outside provider pattern",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["file"] = []interface{}{map[string]interface{}{"url": "https://cdn.elsewhere.org/42.pdf"}}
			},
			contains: "https://cdn.elsewhere.org/42.pdf",
		},
		{
			name: "image url outside provider pattern",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["image"] = map[string]interface{}{"url": "http://example.org/cover.png"}
			},
			contains: "http://example.org/cover.png",
		},
		{
			name: "source not allowed",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["source"] = []interface{}{json.Number("1503"), json.Number("999")}
			},
			contains: "source 999 is not allowed",
		},
		{
			name: "unknown provider",
			mutate: func(_ map[string]interface{}, sub *queue.Submission) {
				sub.ProviderID = "nobody"
			},
			contains: "unknown provider nobody",
		},
		{
			name: "malformed source",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["source"] = []interface{}{"ReliefWeb"}
			},
			contains: "malformed report payload",
		},
		{
			name: "fractional term id",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["language"] = []interface{}{json.Number("267.5")}
			},
			contains: "term id 267.5 is not an integer",
		},
		{
			name: "missing title",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				delete(p, "title")
			},
			contains: "ReportPayload.Title failed on required",
		},
		{
			name: "bad publication date",
			mutate: func(p map[string]interface{}, _ *queue.Submission) {
				p["published"] = "01/05/2024"
			},
			contains: "Published failed on datetime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newContentRepository(t)
			p := NewReportProcessor(newProviders(), repo)

			payload := reportPayload()
			sub := submission("u-1", payload, "hash-1")
			tt.mutate(payload, sub)

			res, err := p.Process(context.Background(), sub)
			assert.Nil(t, res)
			requireProcessingError(t, err, tt.contains)
		})
	}
}

func TestJobProcessor_Create(t *testing.T) {
	repo := newContentRepository(t)
	p := NewJobProcessor(newProviders(), repo)

	payload := map[string]interface{}{
		"title":            "Logistics Officer (Nairobi)",
		"body":             strings.Repeat("Coordinates supply chains. ", 20),
		"how_to_apply":     strings.Repeat("Apply online. ", 10),
		"url":              "https://example.org/jobs/7",
		"source":           []interface{}{json.Number("2")},
		"job_type":         json.Number("263"),
		"job_experience":   json.Number("258"),
		"job_closing_date": "2024-06-30",
	}
	sub := &queue.Submission{UUID: "j-1", Bundle: BundleJob, ProviderID: "provider-1", Payload: payload, ContentHash: "h"}

	res, err := p.Process(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
}

func TestTrainingProcessor_FeeInformationRequired(t *testing.T) {
	repo := newContentRepository(t)
	p := NewTrainingProcessor(newProviders(), repo)

	payload := map[string]interface{}{
		"title":             "Humanitarian negotiation course",
		"body":              strings.Repeat("Learn to negotiate access. ", 20),
		"how_to_register":   strings.Repeat("Register online. ", 10),
		"url":               "https://example.org/training/3",
		"source":            []interface{}{json.Number("2")},
		"training_format":   []interface{}{json.Number("4607")},
		"training_type":     []interface{}{json.Number("4609")},
		"training_language": []interface{}{json.Number("267")},
		"cost":              "fee",
	}
	sub := &queue.Submission{UUID: "t-1", Bundle: BundleTraining, ProviderID: "provider-1", Payload: payload, ContentHash: "h"}

	_, err := p.Process(context.Background(), sub)
	requireProcessingError(t, err, "FeeInformation failed on required_if")

	payload["fee_information"] = "250 USD"
	res, err := p.Process(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
}

func TestProcessor_DefaultURLPattern(t *testing.T) {
	repo := newContentRepository(t)
	p := NewReportProcessor(newProviders(), repo)

	payload := reportPayload()
	payload["url"] = "http://insecure.example.com/report"
	payload["file"] = nil
	sub := submission("u-1", payload, "hash-1")
	sub.ProviderID = "provider-open"

	_, err := p.Process(context.Background(), sub)
	requireProcessingError(t, err, "does not match the pattern")

	payload["url"] = "https://any.example.com/report"
	res, err := p.Process(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)
}

type racingRepository struct {
	content.Repository
	winner *content.Entity
	finds  int
}

func (r *racingRepository) FindByLogicalKey(ctx context.Context, bundle, key string) (*content.Entity, error) {
	r.finds++
	if r.finds == 1 {
		return nil, nil
	}
	return r.winner, nil
}

func (r *racingRepository) Create(ctx context.Context, e *content.Entity) (bool, error) {
	return false, nil
}

func (r *racingRepository) Update(ctx context.Context, e *content.Entity) error {
	r.winner = e
	return nil
}

func TestProcessor_ConcurrentCreateFallsBackToUpdate(t *testing.T) {
	repo := &racingRepository{winner: &content.Entity{ID: 9, ContentHash: "other"}}
	p := NewReportProcessor(newProviders(), repo)

	res, err := p.Process(context.Background(), submission("u-1", reportPayload(), "hash-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, uint(9), res.EntityID)
	assert.Equal(t, content.RevisionLogUpdated, repo.winner.RevisionLog)
}

func TestLogicalKey_SourceOrder(t *testing.T) {
	a, err := LogicalKey("https://example.org/a", []int{1, 2, 3})
	require.NoError(t, err)
	b, err := LogicalKey("https://example.org/a", []int{3, 1, 2})
	require.NoError(t, err)
	c, err := LogicalKey("https://example.org/b", []int{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestProcessor_ProviderRules(t *testing.T) {
	repo := newContentRepository(t)
	p := NewReportProcessor(newProviders(), repo)
	ctx := context.Background()

	accepted := submission("u-1", reportPayload(), "hash-1")
	accepted.ProviderID = "provider-english"
	res, err := p.Process(ctx, accepted)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, res.Status)

	french := reportPayload()
	french["url"] = "https://example.org/reports/43"
	french["language"] = []interface{}{json.Number("268")}
	rejected := submission("u-2", french, "hash-2")
	rejected.ProviderID = "provider-english"
	_, err = p.Process(ctx, rejected)
	requireProcessingError(t, err, "rejected by rule \"267 in payload.language\"")

	broken := submission("u-3", reportPayload(), "hash-3")
	broken.ProviderID = "provider-broken-rule"
	_, err = p.Process(ctx, broken)
	requireProcessingError(t, err, "rule must return bool")
}
