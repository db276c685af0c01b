package cache

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want miss", ok, err)
	}

	if err := s.Put("catalog", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload, ok, err := s.Get("catalog")
	if err != nil || !ok || string(payload) != "v1" {
		t.Fatalf("Get = %q, %v, %v; want v1", payload, ok, err)
	}

	// Upsert replaces in place.
	if err := s.Put("catalog", []byte("v2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload, _, _ = s.Get("catalog")
	if string(payload) != "v2" {
		t.Fatalf("Get after upsert = %q, want v2", payload)
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("catalog", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete("catalog"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("catalog"); ok {
		t.Fatal("deleted key should be a miss")
	}
}
