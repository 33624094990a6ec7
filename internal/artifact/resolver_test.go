package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeStore records calls and returns canned results.
type fakeStore struct {
	presignURL string
	presignErr error
	size       int64
	statErr    error

	presignBucket, presignKey string
	statBucket, statKey       string
}

func (f *fakeStore) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	f.presignBucket, f.presignKey = bucket, key
	return f.presignURL, f.presignErr
}

func (f *fakeStore) StatSize(ctx context.Context, bucket, key string) (int64, error) {
	f.statBucket, f.statKey = bucket, key
	return f.size, f.statErr
}

func TestParseLocation(t *testing.T) {
	bucket, key, err := ParseLocation("s3://firmware/thermostat-v2/1.4.0.bin")
	if err != nil {
		t.Fatalf("ParseLocation: %v", err)
	}
	if bucket != "firmware" {
		t.Errorf("bucket = %q, want %q", bucket, "firmware")
	}
	if key != "thermostat-v2/1.4.0.bin" {
		t.Errorf("key = %q, want %q", key, "thermostat-v2/1.4.0.bin")
	}
}

func TestParseLocation_Malformed(t *testing.T) {
	for _, loc := range []string{"", "https://x/y", "s3://", "s3://bucket", "s3://bucket/"} {
		if _, _, err := ParseLocation(loc); err == nil {
			t.Errorf("ParseLocation(%q) should fail", loc)
		}
	}
}

func TestResolve(t *testing.T) {
	store := &fakeStore{presignURL: "https://store/fw.bin?sig=x", size: 524288}
	r := NewResolver(store, time.Hour, zerolog.Nop())

	before := time.Now().UTC()
	dl, err := r.Resolve(context.Background(), "s3://firmware/thermostat-v2/1.4.0.bin")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dl.URL != "https://store/fw.bin?sig=x" {
		t.Errorf("URL = %q", dl.URL)
	}
	if dl.SizeBytes != 524288 {
		t.Errorf("SizeBytes = %d, want 524288", dl.SizeBytes)
	}
	if dl.ExpiresAt.Before(before.Add(59 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about one hour out", dl.ExpiresAt)
	}
	if store.presignBucket != "firmware" || store.presignKey != "thermostat-v2/1.4.0.bin" {
		t.Errorf("presign called with %q/%q", store.presignBucket, store.presignKey)
	}
}

func TestResolve_MissingArtifactDegradesToZeroSize(t *testing.T) {
	store := &fakeStore{presignURL: "https://store/fw.bin?sig=x", statErr: errors.New("NoSuchKey")}
	r := NewResolver(store, time.Hour, zerolog.Nop())

	dl, err := r.Resolve(context.Background(), "s3://firmware/missing.bin")
	if err != nil {
		t.Fatalf("Resolve should not fail on a stat error: %v", err)
	}
	if dl.URL == "" {
		t.Error("URL should still be signed for a missing artifact")
	}
	if dl.SizeBytes != 0 {
		t.Errorf("SizeBytes = %d, want 0", dl.SizeBytes)
	}
}

func TestResolve_SigningFailure(t *testing.T) {
	store := &fakeStore{presignErr: errors.New("store unavailable")}
	r := NewResolver(store, time.Hour, zerolog.Nop())

	if _, err := r.Resolve(context.Background(), "s3://firmware/fw.bin"); err == nil {
		t.Fatal("Resolve should fail when signing fails")
	}
}

func TestResolve_MalformedLocation(t *testing.T) {
	store := &fakeStore{}
	r := NewResolver(store, time.Hour, zerolog.Nop())

	if _, err := r.Resolve(context.Background(), "ftp://firmware/fw.bin"); err == nil {
		t.Fatal("Resolve should fail for a non-s3 locator")
	}
	if store.presignBucket != "" {
		t.Error("store should not be consulted for a malformed locator")
	}
}
