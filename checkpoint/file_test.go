package checkpoint

import (
	"context"
	"testing"
)

func TestFileStoreConformance(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	runStoreConformance(t, s)
}

func TestFileStoreSanitizesThreadID(t *testing.T) {
	s := NewFileStore(t.TempDir())
	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	cp := Checkpoint{ThreadID: "chat/../../etc", Step: 1, CreatedAt: "now", UpdatedAt: "now"}
	if err := s.Save(ctx, "ns", cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := s.path("ns", cp.ThreadID)
	if path == "" {
		t.Fatal("expected a resolved path")
	}
	loaded, ok, err := s.Load(ctx, "ns", cp.ThreadID)
	if err != nil || !ok {
		t.Fatalf("Load: got (%v, %v, %v)", loaded, ok, err)
	}
}
