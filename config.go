package agentrt

import (
	"os"

	"github.com/BurntSushi/toml"
)

// RuntimeConfig is the ambient configuration for an agent-runtime process:
// defaults -> TOML file -> environment variables (env wins), the same
// three-layer precedence the teacher's internal/config package used.
type RuntimeConfig struct {
	Providers  map[string]ProviderConfig `toml:"providers"`
	Session    SessionDefaults           `toml:"session"`
	Permission PermissionConfig          `toml:"permission"`
	Checkpoint CheckpointConfig          `toml:"checkpoint"`
	MCP        []MCPServerConfig         `toml:"mcp"`
	Hooks      HookConfig                `toml:"hooks"`
	Observer   ObserverConfig            `toml:"observer"`
}

// ProviderConfig names one language-model SDK binding (§6); a session may
// route between agents that each pick a different provider by name out of
// this map, so it is a map rather than a single flat block.
type ProviderConfig struct {
	Kind   string `toml:"kind"` // "gemini", "anthropic", "openai", ...
	Model  string `toml:"model"`
	APIKey string `toml:"api_key"`
}

// SessionDefaults seeds the fields of a SessionConfig/AgentConfig a
// deployment hasn't set explicitly.
type SessionDefaults struct {
	MaxHandoffDepth int  `toml:"max_handoff_depth"`
	AutoDrainTasks  bool `toml:"auto_drain_tasks"`
	MaxSteps        int  `toml:"max_steps"`
	MaxRetries      int  `toml:"max_retries"`
}

// PermissionConfig sets the default PermissionMode (§4.2) new agents are
// constructed with; individual agents may still override it.
type PermissionConfig struct {
	Mode              string `toml:"mode"` // "default", "acceptEdits", "bypassPermissions"
	BlockShellFileOps bool   `toml:"block_shell_file_ops"`
}

// CheckpointConfig selects and configures the checkpoint/ backing store
// (§4.9); Backend picks which checkpoint.Store constructor the caller
// wires up, Path/Namespace parameterize it.
type CheckpointConfig struct {
	Backend   string `toml:"backend"` // "memory", "file", "sqlite", "postgres"
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
}

// MCPServerConfig mirrors mcp.ServerConfig's fields so a TOML array of
// tables maps directly onto mcp.Manager.Connect calls.
type MCPServerConfig struct {
	Name      string   `toml:"name"`
	Transport string   `toml:"transport"` // "stdio", "http"
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	URL       string   `toml:"url"`
}

type HookConfig struct {
	DefaultTimeoutMs int `toml:"default_timeout_ms"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultRuntimeConfig returns a RuntimeConfig with all defaults applied.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Providers: map[string]ProviderConfig{
			"default": {Kind: "gemini", Model: "gemini-2.5-flash"},
		},
		Session: SessionDefaults{
			MaxHandoffDepth: 10,
			MaxSteps:        25,
			MaxRetries:      10,
		},
		Permission: PermissionConfig{Mode: "default"},
		Checkpoint: CheckpointConfig{Backend: "memory", Namespace: "default"},
		Hooks:      HookConfig{DefaultTimeoutMs: 5000},
	}
}

// LoadRuntimeConfig reads config: defaults -> TOML file -> env vars (env
// wins).
func LoadRuntimeConfig(path string) RuntimeConfig {
	cfg := DefaultRuntimeConfig()

	if path == "" {
		path = "agentrt.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("AGENTRT_PROVIDER_API_KEY"); v != "" {
		p := cfg.Providers["default"]
		p.APIKey = v
		cfg.Providers["default"] = p
	}
	if v := os.Getenv("AGENTRT_CHECKPOINT_PATH"); v != "" {
		cfg.Checkpoint.Path = v
	}
	if v := os.Getenv("AGENTRT_PERMISSION_MODE"); v != "" {
		cfg.Permission.Mode = v
	}
	if os.Getenv("AGENTRT_OBSERVER_ENABLED") == "true" || os.Getenv("AGENTRT_OBSERVER_ENABLED") == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
