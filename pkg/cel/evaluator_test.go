package cel

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidateRule(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{
			name: "bool comparison",
			expr: `payload.language == "en"`,
		},
		{
			name: "uses bundle and provider",
			expr: `bundle == "report" && provider.startsWith("unhcr")`,
		},
		{
			name:      "non-bool expression",
			expr:      `payload.title`,
			wantError: true,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
		{
			name:      "undefined variable",
			expr:      `source == "api"`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.ValidateRule(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	in := Input{
		UUID:     "6d1c4c8e-1f6b-4a53-9b8e-0a3c2f7f2b11",
		Bundle:   "report",
		Provider: "unhcr",
		Payload: map[string]interface{}{
			"title":  "Flood response",
			"source": []interface{}{json.Number("1503")},
			"score":  json.Number("2.5"),
			"origin": map[string]interface{}{"country": "SD"},
		},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "string field", expr: `payload.title.contains("Flood")`, want: true},
		{name: "json number in list", expr: `1503 in payload.source`, want: true},
		{name: "json number float", expr: `payload.score > 2.0`, want: true},
		{name: "nested field", expr: `payload.origin.country == "SD"`, want: true},
		{name: "has missing field", expr: `has(payload.body)`, want: false},
		{name: "bundle", expr: `bundle == "job"`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(context.Background(), tt.expr, in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_MissingKeyIsError(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), `payload.body == "x"`, Input{Payload: map[string]interface{}{}})
	assert.Error(t, err)
}

func TestFirstRejecting(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	in := Input{Bundle: "report", Payload: map[string]interface{}{"title": "Short"}}

	rule, err := eval.FirstRejecting(context.Background(), []string{`bundle == "report"`, `size(payload.title) > 10`}, in)
	require.NoError(t, err)
	assert.Equal(t, `size(payload.title) > 10`, rule)

	rule, err = eval.FirstRejecting(context.Background(), []string{`bundle == "report"`}, in)
	require.NoError(t, err)
	assert.Empty(t, rule)

	rule, err = eval.FirstRejecting(context.Background(), nil, in)
	require.NoError(t, err)
	assert.Empty(t, rule)
}

func TestEvaluate_CachesPrograms(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	expr := `bundle == "report"`
	for i := 0; i < 3; i++ {
		ok, err := eval.Evaluate(context.Background(), expr, Input{Bundle: "report"})
		require.NoError(t, err)
		assert.True(t, ok)
	}

	_, cached := eval.programs.Load(expr)
	assert.True(t, cached)
}
