// Package tracer is a thin tracing abstraction so analysis and scan code can
// emit spans without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: tests and tracing disabled
//   - OTelTracer: OpenTelemetry adapter
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span. End must be called exactly once.
type Span interface {
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }
func Int(key string, value int) Attribute { return Attribute{Key: key, Value: value} }

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashHandle returns a short digest of a social handle so traces can be
// correlated without carrying the handle itself.
func HashHandle(handle string) string {
	if handle == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(handle))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanAnalyze        = "analysis.analyze"
	SpanAnalyzeRemote  = "analysis.remote.call"
	SpanAnalyzeLLM     = "analysis.llm.completion"
	SpanScanCompletion = "scan.complete"
)

// Attribute keys.
const (
	AttrHandle      = "handle_hash"
	AttrContentType = "content_type"
	AttrStatus      = "verification_status"
	AttrCategory    = "error_category"
	AttrConfidence  = "confidence"
	AttrModel       = "model"
)
