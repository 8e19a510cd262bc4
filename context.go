package sessiongate

import (
	"context"

	"github.com/croven/sessiongate/fingerprint"
)

type requestMetadataContextKey struct{}

// WithRequestMetadata attaches the captured request fingerprint material to
// ctx. The authentication boundary sets it once per request; the engine uses
// it for fingerprint comparison, origin drift detection, and audit records.
func WithRequestMetadata(ctx context.Context, md fingerprint.Metadata) context.Context {
	return context.WithValue(ctx, requestMetadataContextKey{}, md)
}

// RequestMetadataFromContext returns the metadata attached by
// [WithRequestMetadata], if any.
func RequestMetadataFromContext(ctx context.Context) (fingerprint.Metadata, bool) {
	if ctx == nil {
		return fingerprint.Metadata{}, false
	}
	md, ok := ctx.Value(requestMetadataContextKey{}).(fingerprint.Metadata)
	return md, ok
}

func originFromContext(ctx context.Context) string {
	md, ok := RequestMetadataFromContext(ctx)
	if !ok {
		return fingerprint.OriginUnknown
	}
	return fingerprint.NormalizeOrigin(md.NetworkOrigin)
}
