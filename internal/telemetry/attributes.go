// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import "go.opentelemetry.io/otel/attribute"

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Source attributes
	SourceKindKey = "source.kind"
	SourceRefKey  = "source.reference"

	// Fetch attributes
	FetchURLKey         = "fetch.url"
	FetchMaxAttemptsKey = "fetch.max_attempts"
	FetchAttemptsKey    = "fetch.attempts"
	FetchBytesKey       = "fetch.bytes"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// SourceAttributes describes a source reference. ref must already be sanitized.
func SourceAttributes(kind, ref string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(SourceKindKey, kind)}
	if ref != "" {
		attrs = append(attrs, attribute.String(SourceRefKey, ref))
	}
	return attrs
}
