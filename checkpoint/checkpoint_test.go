package checkpoint

import (
	"context"
	"testing"

	"github.com/corestrand/agentrt"
)

// runStoreConformance exercises the Store contract against any backend;
// each backend's own _test.go calls this with a freshly-initialized
// instance, mirroring store/sqlite_test.go's testStore-then-assert shape.
func runStoreConformance(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	cp := Checkpoint{
		ThreadID:  "thread-1",
		Step:      10,
		Messages:  []agentrt.ChatMessage{agentrt.UserMessage("hello")},
		State:     agentrt.NewState(),
		Metadata:  map[string]any{"source": "test"},
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-01T00:00:00Z",
	}
	cp.State.AddTodo("write tests")

	if err := store.Save(ctx, "ns-a", cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := store.Load(ctx, "ns-a", "thread-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("Load: expected checkpoint to exist")
	}
	if loaded.Step != 10 || loaded.Messages[0].Content != "hello" {
		t.Fatalf("Load: round-trip mismatch: %+v", loaded)
	}
	if loaded.Metadata["source"] != "test" {
		t.Fatalf("Load: metadata not preserved: %+v", loaded.Metadata)
	}
	if len(loaded.State.Todos) != 1 || loaded.State.Todos[0].Content != "write tests" {
		t.Fatalf("Load: state not preserved: %+v", loaded.State)
	}

	exists, err := store.Exists(ctx, "ns-a", "thread-1")
	if err != nil || !exists {
		t.Fatalf("Exists: got (%v, %v), want (true, nil)", exists, err)
	}

	missing, err := store.Exists(ctx, "ns-a", "thread-missing")
	if err != nil || missing {
		t.Fatalf("Exists (missing): got (%v, %v), want (false, nil)", missing, err)
	}

	// Updating preserves CreatedAt and last-writer-wins on everything else.
	cp.Step = 11
	cp.UpdatedAt = "2026-01-01T00:05:00Z"
	cp.CreatedAt = "should-be-ignored"
	if err := store.Save(ctx, "ns-a", cp); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	loaded, _, _ = store.Load(ctx, "ns-a", "thread-1")
	if loaded.Step != 11 {
		t.Fatalf("Save (update): step not updated: %d", loaded.Step)
	}
	if loaded.CreatedAt != "2026-01-01T00:00:00Z" {
		t.Fatalf("Save (update): created_at must stay immutable, got %q", loaded.CreatedAt)
	}

	// A checkpoint under a different namespace with the same threadID is
	// independent.
	cp2 := cp
	cp2.Step = 99
	if err := store.Save(ctx, "ns-b", cp2); err != nil {
		t.Fatalf("Save (other namespace): %v", err)
	}
	loadedA, _, _ := store.Load(ctx, "ns-a", "thread-1")
	if loadedA.Step != 11 {
		t.Fatalf("namespace isolation violated: ns-a step changed to %d", loadedA.Step)
	}

	names, err := store.List(ctx, "ns-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "thread-1" {
		t.Fatalf("List: got %v, want [thread-1]", names)
	}

	if err := store.Delete(ctx, "ns-a", "thread-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, _ = store.Load(ctx, "ns-a", "thread-1")
	if ok {
		t.Fatal("Delete: checkpoint still loadable")
	}

	// Deleting an absent checkpoint is not an error.
	if err := store.Delete(ctx, "ns-a", "thread-1"); err != nil {
		t.Fatalf("Delete (already gone): %v", err)
	}
}

func TestCheckpointerNamespacing(t *testing.T) {
	store := NewMemoryStore()
	a := New(store, "tenant-a")
	b := New(store, "tenant-b")
	ctx := context.Background()

	cp := Checkpoint{ThreadID: "t1", Step: 1, State: agentrt.NewState(), CreatedAt: "now", UpdatedAt: "now"}
	if err := a.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok, _ := b.Load(ctx, "t1"); ok {
		t.Fatal("tenant-b should not see tenant-a's checkpoint")
	}
	if _, ok, err := a.Load(ctx, "t1"); err != nil || !ok {
		t.Fatalf("tenant-a Load: got (%v, %v)", ok, err)
	}
}

func TestCheckpointerDeepCopyOnSaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, "ns")
	ctx := context.Background()

	state := agentrt.NewState()
	state.AddTodo("original")
	cp := Checkpoint{ThreadID: "t1", Step: 1, State: state, CreatedAt: "now", UpdatedAt: "now"}
	if err := c.Save(ctx, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's copy after Save must not affect the stored
	// checkpoint (§4.9: deep copies on both read and write).
	state.Todos[0].Content = "mutated after save"

	loaded, _, err := c.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.State.Todos[0].Content != "original" {
		t.Fatalf("Save did not deep-copy: got %q", loaded.State.Todos[0].Content)
	}

	// Mutating the loaded copy must not affect the stored checkpoint either.
	loaded.State.Todos[0].Content = "mutated after load"
	loaded2, _, _ := c.Load(ctx, "t1")
	if loaded2.State.Todos[0].Content != "original" {
		t.Fatalf("Load did not deep-copy: got %q", loaded2.State.Todos[0].Content)
	}
}
