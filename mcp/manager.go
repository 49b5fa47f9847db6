package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// transport abstracts the two wire transports a server connection can use.
type transport interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Close() error
}

// ServerConfig describes one named MCP server to connect to. Exactly one
// of Command or URL should be set.
type ServerConfig struct {
	Name string

	// Stdio transport.
	Command string
	Args    []string

	// HTTP transport.
	URL     string
	Headers map[string]string

	HTTPClient *http.Client
}

// connection holds the live state for one connected server.
type connection struct {
	name      string
	transport transport
	tools     []ToolDefinition
}

// EventFunc is notified when a server connection fails ("failed") or is
// restored after a failure ("restored"); a first successful connection
// fires no event. It is the bridge a runtime adapter uses to emit
// MCPConnectionFailed/MCPConnectionRestored hook events (kept here as a
// plain callback, not a hook-registry call, so this package never imports
// the agent runtime and no import cycle results).
type EventFunc func(event, server string, err error)

// Manager owns a set of named MCP server connections, exposes their tools
// under a `mcp__<server>__<tool>` naming scheme, and bridges tool calls
// back to the owning transport.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*connection
	failed      map[string]bool
	onEvent     EventFunc
}

// NewManager returns an empty Manager. onEvent may be nil.
func NewManager(onEvent EventFunc) *Manager {
	return &Manager{
		connections: make(map[string]*connection),
		failed:      make(map[string]bool),
		onEvent:     onEvent,
	}
}

// QualifiedName builds the `mcp__<server>__<tool>` name a bridged tool is
// exposed under.
func QualifiedName(server, tool string) string {
	return fmt.Sprintf("mcp__%s__%s", server, tool)
}

// Connect dials cfg's transport, performs the MCP initialize handshake,
// sends the notifications/initialized notification, and lists the
// server's tools. On success the server's tools become available via
// ListTools/Call under QualifiedName(cfg.Name, tool.Name).
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) error {
	var tr transport
	var err error
	switch {
	case cfg.Command != "":
		tr, err = NewStdioTransport(ctx, cfg.Command, cfg.Args...)
	case cfg.URL != "":
		tr = NewHTTPTransport(cfg.URL, cfg.HTTPClient, cfg.Headers)
	default:
		return fmt.Errorf("mcp: server %q has neither Command nor URL", cfg.Name)
	}
	if err != nil {
		m.notifyFailed(cfg.Name, err)
		return fmt.Errorf("mcp: connect %q: %w", cfg.Name, err)
	}

	initResult, err := tr.Call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    struct{}{},
		ClientInfo:      clientInfo{Name: "agentrt", Version: "0.1.0"},
	})
	if err != nil {
		tr.Close()
		m.notifyFailed(cfg.Name, err)
		return fmt.Errorf("mcp: initialize %q: %w", cfg.Name, err)
	}
	var ir initializeResult
	if err := json.Unmarshal(initResult, &ir); err != nil {
		tr.Close()
		m.notifyFailed(cfg.Name, err)
		return fmt.Errorf("mcp: decode initialize result from %q: %w", cfg.Name, err)
	}

	if n, ok := tr.(interface {
		Notify(context.Context, string, any) error
	}); ok {
		_ = n.Notify(ctx, "notifications/initialized", struct{}{})
	}

	toolsResult, err := tr.Call(ctx, "tools/list", struct{}{})
	if err != nil {
		tr.Close()
		m.notifyFailed(cfg.Name, err)
		return fmt.Errorf("mcp: tools/list %q: %w", cfg.Name, err)
	}
	var tl toolsListResult
	if err := json.Unmarshal(toolsResult, &tl); err != nil {
		tr.Close()
		m.notifyFailed(cfg.Name, err)
		return fmt.Errorf("mcp: decode tools/list from %q: %w", cfg.Name, err)
	}

	m.mu.Lock()
	restored := m.failed[cfg.Name]
	m.failed[cfg.Name] = false
	m.connections[cfg.Name] = &connection{name: cfg.Name, transport: tr, tools: tl.Tools}
	m.mu.Unlock()

	if restored && m.onEvent != nil {
		m.onEvent("restored", cfg.Name, nil)
	}
	return nil
}

func (m *Manager) notifyFailed(server string, err error) {
	m.mu.Lock()
	m.failed[server] = true
	m.mu.Unlock()
	if m.onEvent != nil {
		m.onEvent("failed", server, err)
	}
}

// Disconnect closes server's transport and removes it from the manager.
func (m *Manager) Disconnect(server string) error {
	m.mu.Lock()
	conn, ok := m.connections[server]
	delete(m.connections, server)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return conn.transport.Close()
}

// ListTools returns every bridged tool across all connected servers, named
// `mcp__<server>__<tool>`.
func (m *Manager) ListTools() []ToolDefinition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ToolDefinition
	for _, conn := range m.connections {
		for _, t := range conn.tools {
			out = append(out, ToolDefinition{
				Name:        QualifiedName(conn.name, t.Name),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
	}
	return out
}

// Call dispatches a tools/call to the owning server for a qualified tool
// name previously returned by ListTools. On a transport failure it marks
// the server failed and fires onEvent, so a caller retrying later can
// observe the restored transition on the next successful Connect.
func (m *Manager) Call(ctx context.Context, qualifiedName string, args json.RawMessage) (ToolCallResult, error) {
	server, tool, ok := splitQualifiedName(qualifiedName)
	if !ok {
		return ToolCallResult{}, fmt.Errorf("mcp: malformed tool name %q", qualifiedName)
	}

	m.mu.RLock()
	conn, exists := m.connections[server]
	m.mu.RUnlock()
	if !exists {
		return ToolCallResult{}, fmt.Errorf("mcp: server %q not connected", server)
	}

	result, err := conn.transport.Call(ctx, "tools/call", toolCallParams{Name: tool, Arguments: args})
	if err != nil {
		m.notifyFailed(server, err)
		return ToolCallResult{}, fmt.Errorf("mcp: call %s: %w", qualifiedName, err)
	}

	var tc ToolCallResult
	if err := json.Unmarshal(result, &tc); err != nil {
		return ToolCallResult{}, fmt.Errorf("mcp: decode tools/call result from %q: %w", qualifiedName, err)
	}
	return tc, nil
}

// ListResources returns every resource exposed by server.
func (m *Manager) ListResources(ctx context.Context, server string) ([]resourceDef, error) {
	m.mu.RLock()
	conn, exists := m.connections[server]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("mcp: server %q not connected", server)
	}

	result, err := conn.transport.Call(ctx, "resources/list", struct{}{})
	if err != nil {
		m.notifyFailed(server, err)
		return nil, fmt.Errorf("mcp: resources/list %q: %w", server, err)
	}
	var rl resourcesListResult
	if err := json.Unmarshal(result, &rl); err != nil {
		return nil, fmt.Errorf("mcp: decode resources/list from %q: %w", server, err)
	}
	return rl.Resources, nil
}

// ReadResource reads uri from server.
func (m *Manager) ReadResource(ctx context.Context, server, uri string) (string, error) {
	m.mu.RLock()
	conn, exists := m.connections[server]
	m.mu.RUnlock()
	if !exists {
		return "", fmt.Errorf("mcp: server %q not connected", server)
	}

	result, err := conn.transport.Call(ctx, "resources/read", resourceReadParams{URI: uri})
	if err != nil {
		m.notifyFailed(server, err)
		return "", fmt.Errorf("mcp: resources/read %q: %w", server, err)
	}
	var rr resourceReadResult
	if err := json.Unmarshal(result, &rr); err != nil {
		return "", fmt.Errorf("mcp: decode resources/read from %q: %w", server, err)
	}
	var out string
	for _, c := range rr.Contents {
		out += c.Text
	}
	return out, nil
}

// Servers returns the names of all currently connected servers.
func (m *Manager) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	return names
}

func splitQualifiedName(name string) (server, tool string, ok bool) {
	const prefix = "mcp__"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return "", "", false
	}
	rest := name[len(prefix):]
	for i := 0; i+1 < len(rest); i++ {
		if rest[i] == '_' && rest[i+1] == '_' {
			return rest[:i], rest[i+2:], true
		}
	}
	return "", "", false
}
