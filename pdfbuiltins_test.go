package agentrt

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegisterReadPDFToolMissingPath(t *testing.T) {
	reg := NewToolRegistry()
	RegisterReadPDFTool(reg)
	reg.Load([]string{"read_pdf"})

	res, err := reg.Execute(context.Background(), "read_pdf", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for missing path")
	}
}

func TestRegisterReadPDFToolMissingFile(t *testing.T) {
	reg := NewToolRegistry()
	RegisterReadPDFTool(reg)
	reg.Load([]string{"read_pdf"})

	res, err := reg.Execute(context.Background(), "read_pdf", json.RawMessage(`{"path":"/nonexistent/file.pdf"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for a nonexistent file")
	}
}

func TestRegisterReadPDFToolRegistersUnderWebMetadata(t *testing.T) {
	reg := NewToolRegistry()
	RegisterReadPDFTool(reg)
	entry, ok := reg.entries["read_pdf"]
	if !ok {
		t.Fatal("expected read_pdf to be registered")
	}
	if entry.meta.Plugin != "web" {
		t.Errorf("expected plugin 'web', got %q", entry.meta.Plugin)
	}
}
