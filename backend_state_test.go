package agentrt

import (
	"context"
	"strings"
	"testing"
)

func TestStateBackendWriteReadRoundTrip(t *testing.T) {
	b := NewStateBackend(nil)
	ctx := context.Background()

	res, err := b.Write(ctx, "notes/todo.md", "line one\nline two\nline three")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !res.Success || res.Path != "/notes/todo.md" {
		t.Fatalf("unexpected write result: %+v", res)
	}

	out, err := b.Read(ctx, "notes/todo.md", 0, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := "1→line one\n2→line two\n3→line three\n"
	if out != want {
		t.Errorf("Read = %q, want %q", out, want)
	}

	out, err = b.Read(ctx, "notes/todo.md", 1, 1)
	if err != nil {
		t.Fatalf("Read offset/limit: %v", err)
	}
	if out != "2→line two\n" {
		t.Errorf("Read offset/limit = %q", out)
	}
}

func TestStateBackendReadMissingFile(t *testing.T) {
	b := NewStateBackend(nil)
	_, err := b.Read(context.Background(), "/missing.txt", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "File not found") {
		t.Fatalf("expected file-not-found error, got %v", err)
	}
}

func TestStateBackendEditRequiresUniqueMatch(t *testing.T) {
	b := NewStateBackend(nil)
	ctx := context.Background()
	b.Write(ctx, "a.txt", "foo bar foo")

	err := b.Edit(ctx, "a.txt", "foo", "baz", false)
	if err == nil {
		t.Fatal("expected error for ambiguous find string")
	}

	if err := b.Edit(ctx, "a.txt", "foo", "baz", true); err != nil {
		t.Fatalf("Edit replaceAll: %v", err)
	}
	rec, _ := b.ReadRaw(ctx, "a.txt")
	if strings.Join(rec.Content, "\n") != "baz bar baz" {
		t.Errorf("unexpected content after replaceAll: %+v", rec.Content)
	}
}

func TestStateBackendLsInfoListsUnderDir(t *testing.T) {
	b := NewStateBackend(nil)
	ctx := context.Background()
	b.Write(ctx, "/src/main.go", "package main")
	b.Write(ctx, "/src/util.go", "package main")
	b.Write(ctx, "/README.md", "hello")

	entries, err := b.LsInfo(ctx, "/src")
	if err != nil {
		t.Fatalf("LsInfo: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries under /src, got %d: %+v", len(entries), entries)
	}
	if entries[0].Path != "/src/main.go" || entries[1].Path != "/src/util.go" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestStateBackendGlobInfoMatchesRelativeToCWD(t *testing.T) {
	b := NewStateBackend(nil)
	ctx := context.Background()
	b.Write(ctx, "/src/a.go", "x")
	b.Write(ctx, "/src/nested/b.go", "x")
	b.Write(ctx, "/docs/readme.md", "x")

	matches, err := b.GlobInfo(ctx, "*.go", "/src")
	if err != nil {
		t.Fatalf("GlobInfo: %v", err)
	}
	if len(matches) != 1 || matches[0] != "/src/a.go" {
		t.Errorf("single-star glob should not cross directories, got %+v", matches)
	}

	matches, err = b.GlobInfo(ctx, "**/*.go", "/src")
	if err != nil {
		t.Fatalf("GlobInfo recursive: %v", err)
	}
	if len(matches) != 1 || matches[0] != "/src/nested/b.go" {
		t.Errorf("** glob should match nested files, got %+v", matches)
	}
}

func TestStateBackendGrepRawReturnsSortedOneIndexedMatches(t *testing.T) {
	b := NewStateBackend(nil)
	ctx := context.Background()
	b.Write(ctx, "/a.txt", "alpha\nbeta\nfoo")
	b.Write(ctx, "/b.txt", "foo\nbar")

	matches, err := b.GrepRaw(ctx, "foo", "", "")
	if err != nil {
		t.Fatalf("GrepRaw: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(matches), matches)
	}
	if matches[0].Path != "/a.txt" || matches[0].Line != 3 {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
	if matches[1].Path != "/b.txt" || matches[1].Line != 1 {
		t.Errorf("unexpected second match: %+v", matches[1])
	}
}

func TestStateBackendExecuteUnsupported(t *testing.T) {
	b := NewStateBackend(nil)
	if b.SupportsExecute() {
		t.Fatal("StateBackend must not support execute")
	}
	_, err := b.Execute(context.Background(), "echo hi")
	if err != ErrExecuteNotSupported {
		t.Errorf("expected ErrExecuteNotSupported, got %v", err)
	}
}
