// Package artifact turns a firmware artifact locator into a time-limited
// download reference plus the object size, consulting the object store.
package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Download is a resolved artifact reference handed to devices. SizeBytes is
// informational; 0 means the size lookup failed and the size is unknown.
type Download struct {
	URL       string
	SizeBytes int64
	ExpiresAt time.Time
}

// ObjectStore is the object-store capability the resolver needs: signing a
// download link and a metadata-only size lookup. Neither transfers object data.
type ObjectStore interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	StatSize(ctx context.Context, bucket, key string) (int64, error)
}

// Resolver resolves s3://bucket/key locators against an object store.
type Resolver struct {
	store ObjectStore
	ttl   time.Duration
	log   zerolog.Logger
}

// NewResolver returns a resolver that signs download links valid for ttl.
func NewResolver(store ObjectStore, ttl time.Duration, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, ttl: ttl, log: log.With().Str("component", "artifact").Logger()}
}

// Resolve signs a download link for the locator and looks up the object size.
// Signing succeeds even for missing objects; a failed size lookup degrades to
// SizeBytes=0 rather than failing the resolution.
func (r *Resolver) Resolve(ctx context.Context, location string) (Download, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return Download{}, err
	}

	url, err := r.store.PresignGet(ctx, bucket, key, r.ttl)
	if err != nil {
		return Download{}, fmt.Errorf("sign download for %s: %w", location, err)
	}

	size, err := r.store.StatSize(ctx, bucket, key)
	if err != nil {
		r.log.Warn().Err(err).Str("location", location).Msg("size lookup failed; reporting size 0")
		size = 0
	}

	return Download{URL: url, SizeBytes: size, ExpiresAt: time.Now().UTC().Add(r.ttl)}, nil
}

// ParseLocation splits an "s3://bucket/key" locator into bucket and key.
// The key may contain slashes.
func ParseLocation(location string) (bucket, key string, err error) {
	const scheme = "s3://"
	if !strings.HasPrefix(location, scheme) {
		return "", "", fmt.Errorf("artifact location %q: expected s3:// scheme", location)
	}
	rest := strings.TrimPrefix(location, scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("artifact location %q: expected s3://bucket/key", location)
	}
	return bucket, key, nil
}
