package ctxutil

import "context"

type traceDataKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// DetachTrace copies trace data from src onto a fresh background context.
// Used when work outlives the request that scheduled it.
func DetachTrace(src context.Context) context.Context {
	ctx := context.Background()
	if td := GetTraceData(src); td != nil {
		copied := *td
		ctx = WithTraceData(ctx, &copied)
	}
	return ctx
}
