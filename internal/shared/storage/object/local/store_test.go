package local

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestPutThenOpen(t *testing.T) {
	store := New(t.TempDir())
	obj, err := store.Put(context.Background(), "client-1", "chart.json", "application/json", strings.NewReader(`{"type":"bar"}`))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Size != int64(len(`{"type":"bar"}`)) {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	if !strings.HasSuffix(obj.Key, "_chart.json") || strings.Contains(obj.Key, "client-1") {
		t.Fatalf("unexpected key %q", obj.Key)
	}

	rc, err := store.Open(context.Background(), obj.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"type":"bar"}` {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestPutRejectsBadName(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Put(context.Background(), "c", "../x.json", "application/json", strings.NewReader("{}")); err == nil {
		t.Fatalf("expected invalid name error")
	}
}
