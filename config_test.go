package agentrt

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRuntimeConfig(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	if cfg.Providers["default"].Kind != "gemini" {
		t.Errorf("expected gemini, got %s", cfg.Providers["default"].Kind)
	}
	if cfg.Session.MaxHandoffDepth != 10 {
		t.Errorf("expected max handoff depth 10, got %d", cfg.Session.MaxHandoffDepth)
	}
	if cfg.Permission.Mode != "default" {
		t.Errorf("expected default permission mode, got %s", cfg.Permission.Mode)
	}
	if cfg.Checkpoint.Backend != "memory" {
		t.Errorf("expected memory checkpoint backend, got %s", cfg.Checkpoint.Backend)
	}
}

func TestLoadRuntimeConfigFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[session]
max_handoff_depth = 3

[checkpoint]
backend = "sqlite"
path = "/tmp/threads.db"

[[mcp]]
name = "docs"
transport = "stdio"
command = "mcp-docs-server"
`), 0644)

	cfg := LoadRuntimeConfig(path)
	if cfg.Session.MaxHandoffDepth != 3 {
		t.Errorf("expected max handoff depth 3, got %d", cfg.Session.MaxHandoffDepth)
	}
	if cfg.Checkpoint.Backend != "sqlite" || cfg.Checkpoint.Path != "/tmp/threads.db" {
		t.Errorf("checkpoint config not loaded: %+v", cfg.Checkpoint)
	}
	if len(cfg.MCP) != 1 || cfg.MCP[0].Name != "docs" || cfg.MCP[0].Command != "mcp-docs-server" {
		t.Errorf("mcp servers not loaded: %+v", cfg.MCP)
	}
	// Defaults preserved for sections not present in the file.
	if cfg.Providers["default"].Kind != "gemini" {
		t.Errorf("default should be preserved, got %s", cfg.Providers["default"].Kind)
	}
}

func TestLoadRuntimeConfigEnvOverride(t *testing.T) {
	t.Setenv("AGENTRT_PROVIDER_API_KEY", "env-key")
	t.Setenv("AGENTRT_CHECKPOINT_PATH", "/env/path.db")
	t.Setenv("AGENTRT_PERMISSION_MODE", "bypassPermissions")

	cfg := LoadRuntimeConfig("/nonexistent/path.toml")
	if cfg.Providers["default"].APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.Providers["default"].APIKey)
	}
	if cfg.Checkpoint.Path != "/env/path.db" {
		t.Errorf("expected /env/path.db, got %s", cfg.Checkpoint.Path)
	}
	if cfg.Permission.Mode != "bypassPermissions" {
		t.Errorf("expected bypassPermissions, got %s", cfg.Permission.Mode)
	}
}
