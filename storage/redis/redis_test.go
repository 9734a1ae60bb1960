package redis

import (
	"context"
	"testing"

	"github.com/ggoodman/appfunctions-go/storage"
	"github.com/ggoodman/appfunctions-go/storage/storagetest"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   2, // Use separate DB for storage tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	t.Cleanup(func() { client.FlushDB(context.Background()) })
	return client
}

func TestRedisStorage(t *testing.T) {
	s, err := New(Config{Client: newTestClient(t)})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewFromURL("://bad", ""); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestKeyLayout(t *testing.T) {
	s := &Storage{keyPrefix: "p:"}
	cases := []struct {
		ns   storage.Namespace
		want string
	}{
		{nil, "p:global:key:k"},
		{storage.PackageNamespace{Package: "a"}, "p:pkg:a:key:k"},
		{storage.FunctionNamespace{Package: "a", FunctionID: "f"}, "p:pkg:a:fn:f:key:k"},
	}
	for _, tc := range cases {
		if got := s.buildKey(tc.ns, "k"); got != tc.want {
			t.Fatalf("buildKey(%v) = %q, want %q", tc.ns, got, tc.want)
		}
	}
}

func TestKeyPrefixIsolation(t *testing.T) {
	client := newTestClient(t)
	a, _ := New(Config{Client: client, KeyPrefix: "a:"})
	b, _ := New(Config{Client: client, KeyPrefix: "b:"})
	ctx := context.Background()

	if err := a.Set(ctx, "k", []byte("from-a")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if item, err := b.Get(ctx, "k"); err != nil || item != nil {
		t.Fatalf("prefix b should not see a's key: %v, %v", item, err)
	}
	if err := b.Delete(ctx); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if item, err := a.Get(ctx, "k"); err != nil || item == nil {
		t.Fatalf("a's key should survive b's namespace delete: %v, %v", item, err)
	}
}
