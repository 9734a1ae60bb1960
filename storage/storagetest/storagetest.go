// Package storagetest holds a conformance suite shared by the storage
// backends.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/appfunctions-go/storage"
)

// Run exercises s against the storage.Storage contract. The backend must be
// empty when Run starts.
func Run(t *testing.T, s storage.Storage) {
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, s) })
	t.Run("GetNonExistent", func(t *testing.T) { testGetNonExistent(t, s) })
	t.Run("TTL", func(t *testing.T) { testTTL(t, s) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, s) })
	t.Run("DeleteKey", func(t *testing.T) { testDeleteKey(t, s) })
	t.Run("DeleteNamespace", func(t *testing.T) { testDeleteNamespace(t, s) })
}

func testSetAndGet(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	data := []byte(`{"state":1}`)

	if err := s.Set(ctx, "enabled", data, storage.WithFunction("com.example.notes", "createNote")); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	item, err := s.Get(ctx, "enabled", storage.WithFunction("com.example.notes", "createNote"))
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if item == nil {
		t.Fatal("Get() returned nil item")
	}
	if string(item.Data) != string(data) {
		t.Fatalf("Get() returned wrong data: got %s, want %s", item.Data, data)
	}
	if item.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be set")
	}
	if item.ExpiresAt != nil {
		t.Fatal("ExpiresAt should be nil without TTL")
	}
}

func testGetNonExistent(t *testing.T, s storage.Storage) {
	item, err := s.Get(context.Background(), "non-existent-key")
	if err != nil {
		t.Fatalf("Get() should not return error for non-existent key: %v", err)
	}
	if item != nil {
		t.Fatal("Get() should return nil for non-existent key")
	}
}

func testTTL(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ttl := 100 * time.Millisecond

	if err := s.Set(ctx, "ttl-key", []byte("ttl-data"), storage.WithTTL(ttl)); err != nil {
		t.Fatalf("Set() with TTL failed: %v", err)
	}
	item, err := s.Get(ctx, "ttl-key")
	if err != nil || item == nil {
		t.Fatalf("Get() before expiration = %v, %v", item, err)
	}
	if item.ExpiresAt == nil {
		t.Fatal("ExpiresAt should be set with TTL")
	}

	time.Sleep(ttl + 50*time.Millisecond)

	item, err = s.Get(ctx, "ttl-key")
	if err != nil {
		t.Fatalf("Get() failed after expiration: %v", err)
	}
	if item != nil {
		t.Fatal("Get() returned non-nil item after expiration")
	}
}

func testNamespaces(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	key := "shared-key"
	cases := []struct {
		name string
		opts []storage.Option
		data string
	}{
		{"global", nil, "global-data"},
		{"package", []storage.Option{storage.WithPackage("com.example.notes")}, "package-data"},
		{"other package", []storage.Option{storage.WithPackage("com.example.mail")}, "other-data"},
		{"function", []storage.Option{storage.WithFunction("com.example.notes", "createNote")}, "function-data"},
	}
	for _, tc := range cases {
		if err := s.Set(ctx, key, []byte(tc.data), tc.opts...); err != nil {
			t.Fatalf("Set() %s failed: %v", tc.name, err)
		}
	}
	for _, tc := range cases {
		item, err := s.Get(ctx, key, tc.opts...)
		if err != nil || item == nil || string(item.Data) != tc.data {
			t.Fatalf("%s data not isolated: %v, %v", tc.name, item, err)
		}
	}
}

func testDeleteKey(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ns := storage.WithPackage("com.example.delete")

	if err := s.Set(ctx, "k", []byte("v"), ns); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if err := s.Delete(ctx, ns, storage.WithKey("k")); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	item, err := s.Get(ctx, "k", ns)
	if err != nil {
		t.Fatalf("Get() failed after deletion: %v", err)
	}
	if item != nil {
		t.Fatal("Data should not exist after deletion")
	}
}

func testDeleteNamespace(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	ns := storage.WithFunction("com.example.wipe", "fn")
	keep := storage.WithFunction("com.example.wipe", "other")
	keys := []string{"key1", "key2", "key3"}

	for _, key := range keys {
		if err := s.Set(ctx, key, []byte("data-"+key), ns); err != nil {
			t.Fatalf("Set() failed for %s: %v", key, err)
		}
	}
	if err := s.Set(ctx, "key1", []byte("kept"), keep); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := s.Delete(ctx, ns); err != nil {
		t.Fatalf("Delete() namespace failed: %v", err)
	}
	for _, key := range keys {
		item, err := s.Get(ctx, key, ns)
		if err != nil {
			t.Fatalf("Get() failed after namespace deletion: %v", err)
		}
		if item != nil {
			t.Fatalf("Key %s should not exist after namespace deletion", key)
		}
	}
	if item, err := s.Get(ctx, "key1", keep); err != nil || item == nil {
		t.Fatalf("sibling namespace should survive: %v, %v", item, err)
	}
}
