package kvstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryGetSetDelete(t *testing.T) {
	m := NewMemory()
	if _, ok, _ := m.Get("k"); ok {
		t.Fatal("expected a miss on an empty store")
	}
	if err := m.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (\"v\", true, nil)", v, ok, err)
	}
	if err := m.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get("k"); ok {
		t.Fatal("expected a miss after Delete")
	}
}

func TestFileGetSetDeleteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	f := NewFile(path)

	if _, ok, _ := f.Get("k"); ok {
		t.Fatal("expected a miss before the file exists")
	}
	if err := f.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected the parent directory and file to be created: %v", err)
	}

	// A fresh File pointed at the same path must see the persisted value.
	f2 := NewFile(path)
	v, ok, err := f2.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (\"v\", true, nil)", v, ok, err)
	}

	if err := f2.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := NewFile(path).Get("k"); ok {
		t.Fatal("expected a miss after Delete")
	}
}

func TestFileGetTreatsCorruptFileAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}
	f := NewFile(path)
	if _, ok, err := f.Get("k"); ok || err != nil {
		t.Fatalf("Get on a corrupt file = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}
