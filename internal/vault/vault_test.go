package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestResolveCachesWithinTTL(t *testing.T) {
	calls := 0
	c := newClient(zap.NewNop().Sugar(), func(_ context.Context, mount, path string) (map[string]any, error) {
		calls++
		if mount != "secret" || path != "relay/app" {
			t.Fatalf("mount=%q path=%q", mount, path)
		}
		return map[string]any{"jwt": "abc", "n": 3}, nil
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		v, err := c.Resolve(context.Background(), "secret/relay/app#jwt")
		if err != nil || v != "abc" {
			t.Fatalf("Resolve = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("backend calls = %d, want 1", calls)
	}

	now = now.Add(DefaultTTL + time.Second)
	_, _ = c.Resolve(context.Background(), "secret/relay/app#jwt")
	if calls != 2 {
		t.Fatalf("expired entry should refetch, calls = %d", calls)
	}

	if _, err := c.Resolve(context.Background(), "secret/relay/app#n"); err == nil {
		t.Fatalf("non-string value should fail")
	}
	if _, err := c.Resolve(context.Background(), "secret/relay/app#missing"); err == nil {
		t.Fatalf("missing key should fail")
	}
}

func TestResolveRejectsBadRef(t *testing.T) {
	c := newClient(zap.NewNop().Sugar(), nil)
	if _, err := c.Resolve(context.Background(), "secret/relay"); !errors.Is(err, ErrBadRef) {
		t.Fatalf("want ErrBadRef, got %v", err)
	}
}
