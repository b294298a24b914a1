package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected []interface{}
	}{
		{
			name:     "empty context",
			ctx:      context.Background(),
			expected: []interface{}{},
		},
		{
			name: "submission and trace",
			ctx: WithSubmission(
				WithTraceID(context.Background(), "trace-1"),
				"a1b2", "report",
			),
			expected: []interface{}{
				"trace_id", "trace-1",
				"submission_uuid", "a1b2",
				"bundle", "report",
			},
		},
		{
			name:     "service name only",
			ctx:      WithServiceName(context.Background(), "postapi"),
			expected: []interface{}{"service_name", "postapi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetLogFields(tt.ctx))
		})
	}
}
