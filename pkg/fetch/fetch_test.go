package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGet(t *testing.T) {
	srv := testServer(t)
	c, err := NewClient("", false)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	body, err := c.Get(context.Background(), srv.URL+"/ok")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body = %q", body)
	}

	if _, err := c.Get(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("Get should fail on a 404")
	}
}

func TestFetchWritesAtomically(t *testing.T) {
	srv := testServer(t)
	c, err := NewClient("", false)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "nested", "dir", "extract.osm.pbf")
	if err := c.Fetch(context.Background(), srv.URL+"/ok", dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	body, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading %q: %v", dest, err)
	}
	if string(body) != "payload" {
		t.Fatalf("content = %q", body)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatal("temporary file should be gone after a successful fetch")
	}
}

func TestFetchFailureLeavesNoArtifact(t *testing.T) {
	srv := testServer(t)
	c, err := NewClient("", false)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "extract.osm.pbf")
	if err := c.Fetch(context.Background(), srv.URL+"/missing", dest); err == nil {
		t.Fatal("Fetch should fail on a 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("no artifact should exist after a failed fetch")
	}
}

func TestNewClientRejectsBadProxy(t *testing.T) {
	if _, err := NewClient("://not-a-url", false); err == nil {
		t.Fatal("NewClient should reject an unparseable proxy")
	}
}
