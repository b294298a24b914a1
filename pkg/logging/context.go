package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey        contextKey = "trace_id"
	SubmissionUUIDKey contextKey = "submission_uuid"
	BundleKey         contextKey = "bundle"
	ServiceNameKey    contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSubmission tags the context with the queue item being handled so every
// log line of a drain iteration can be correlated.
func WithSubmission(ctx context.Context, uuid, bundle string) context.Context {
	ctx = context.WithValue(ctx, SubmissionUUIDKey, uuid)
	return context.WithValue(ctx, BundleKey, bundle)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetSubmissionUUID(ctx context.Context) string {
	return stringValue(ctx, SubmissionUUIDKey)
}

func GetBundle(ctx context.Context) string {
	return stringValue(ctx, BundleKey)
}

func GetServiceName(ctx context.Context) string {
	return stringValue(ctx, ServiceNameKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, string(TraceIDKey), traceID)
	}

	if uuid := GetSubmissionUUID(ctx); uuid != "" {
		fields = append(fields, string(SubmissionUUIDKey), uuid)
	}

	if bundle := GetBundle(ctx); bundle != "" {
		fields = append(fields, string(BundleKey), bundle)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, string(ServiceNameKey), serviceName)
	}

	return fields
}
