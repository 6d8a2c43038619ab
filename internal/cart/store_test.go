package cart

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	c, err := s.Load(ctx, "unknown")
	if err != nil {
		t.Fatalf("Load unknown: %v", err)
	}
	if c.Items == nil || len(c.Items) != 0 {
		t.Fatalf("unknown session cart=%+v want empty non-nil", c)
	}

	want := Cart{Items: []Item{
		{ID: "1", Name: "Widget", Price: 10, Quantity: 2, Image: "w.png"},
		{ID: "seat-upgrade", Name: "Seat Upgrade", Price: 19.99, Quantity: 1, Description: "aisle"},
	}}
	if err := s.Save(ctx, "s1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0] != want.Items[0] || got.Items[1] != want.Items[1] {
		t.Fatalf("loaded=%+v want=%+v", got.Items, want.Items)
	}

	got.Items[0].Quantity = 99
	again, err := s.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if again.Items[0].Quantity != 2 {
		t.Fatalf("mutating a loaded cart leaked into the store")
	}

	if err := s.Save(ctx, "s1", Empty()); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	got, err = s.Load(ctx, "s1")
	if err != nil || len(got.Items) != 0 {
		t.Fatalf("after overwrite=%+v err=%v", got, err)
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMemStore_Contract(t *testing.T) {
	storeContract(t, NewMemStore())
}

func TestFileStore_Contract(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	storeContract(t, s)
}

func TestCachedStore_Contract(t *testing.T) {
	s, err := NewCachedStore(NewMemStore(), 8)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}
	storeContract(t, s)
}

func TestFileStore_OddSessionIDsStayInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ctx := context.Background()
	id := "../../etc/passwd"
	if err := s.Save(ctx, id, Cart{Items: []Item{{ID: "a", Quantity: 1}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".json") {
		t.Fatalf("entries=%v", entries)
	}
	c, err := s.Load(ctx, id)
	if err != nil || len(c.Items) != 1 {
		t.Fatalf("Load=%+v err=%v", c, err)
	}
}

func TestFileStore_CorruptFileIsStorageError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(s.path("s1"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = s.Load(context.Background(), "s1")
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("err=%v want storage error", err)
	}
}

func TestFileStore_ReadsLegacyDocument(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	legacy := `{
  "items": [
    {"id": 7, "name": "Mug", "price": 12.5, "quantity": 2, "image": "mug.png"}
  ]
}`
	if err := os.WriteFile(s.path("default"), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := s.Load(context.Background(), "default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].ID != "7" || c.Items[0].Quantity != 2 {
		t.Fatalf("items=%+v", c.Items)
	}
}

func TestCachedStore_ServesFromCacheAndDropsOnFailedSave(t *testing.T) {
	backing := &countingStore{Store: NewMemStore()}
	s, err := NewCachedStore(backing, 4)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Load(ctx, "s1"); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if backing.loads != 1 {
		t.Fatalf("backing loads=%d want=1", backing.loads)
	}

	if err := s.Save(ctx, "s1", Cart{Items: []Item{{ID: "a", Quantity: 1}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	c, err := s.Load(ctx, "s1")
	if err != nil || len(c.Items) != 1 {
		t.Fatalf("Load after save=%+v err=%v", c, err)
	}
	if backing.loads != 1 {
		t.Fatalf("write-through should keep cache warm, loads=%d", backing.loads)
	}

	failing := &failingStore{saveErr: errors.New("boom")}
	fs, err := NewCachedStore(failing, 4)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}
	if _, err := fs.Load(ctx, "s1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := fs.Save(ctx, "s1", Cart{Items: []Item{{ID: "a", Quantity: 1}}}); err == nil {
		t.Fatalf("expected save error")
	}
	if fs.cache.Contains("s1") {
		t.Fatalf("failed save should evict the cached cart")
	}
}

func TestNewCachedStore_RejectsBadSize(t *testing.T) {
	if _, err := NewCachedStore(NewMemStore(), 0); err == nil {
		t.Fatalf("expected error for size 0")
	}
}
