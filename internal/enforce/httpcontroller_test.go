package enforce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPControllerPostsVerbPerAction(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	c := NewHTTPController(srv.URL)
	ctx := context.Background()

	if err := c.Throttle(ctx, "indexer"); err != nil {
		t.Fatalf("Throttle: %v", err)
	}
	if err := c.Degrade(ctx, "indexer"); err != nil {
		t.Fatalf("Degrade: %v", err)
	}
	if err := c.Terminate(ctx, "indexer"); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	want := []string{
		"/targets/indexer/throttle",
		"/targets/indexer/degrade",
		"/targets/indexer/terminate",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("path[%d] = %s, want %s", i, paths[i], want[i])
		}
	}
}

func TestHTTPControllerRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPController(srv.URL)
	if err := c.Terminate(context.Background(), "indexer"); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestHTTPControllerEscapesTargetName(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
	}))
	defer srv.Close()

	c := NewHTTPController(srv.URL)
	if err := c.Throttle(context.Background(), "index/er"); err != nil {
		t.Fatalf("Throttle: %v", err)
	}
	if path != "/targets/index%2Fer/throttle" {
		t.Fatalf("path = %s", path)
	}
}
