package agentrt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ToolMetadata is the side-table the registry keeps per tool name, used by
// Search/LoadMatching/BuildToolIndex (§4.4.1). Grounded on tool.go's flat
// []Tool slice, generalized to a name-keyed map carrying provenance.
type ToolMetadata struct {
	Plugin   string
	Category string
	Tags     []string
}

type registryEntry struct {
	def  ToolDefinition
	fn   ToolFunc
	meta ToolMetadata
}

// LoadReport is the idempotent result of Load/LoadMatching (§4.4.1).
type LoadReport struct {
	Loaded   []string         `json:"loaded"`
	Skipped  []string         `json:"skipped"` // already loaded
	NotFound []string         `json:"notFound"`
	Success  bool             `json:"success"`
	Tools    []ToolDefinition `json:"tools"`
}

// SearchQuery parameterizes ToolRegistry.Search (§4.4.1).
type SearchQuery struct {
	Query         string
	Plugin        string
	Category      string
	Tags          []string
	IncludeLoaded bool
	Limit         int
}

// SearchResult is one match from ToolRegistry.Search.
type SearchResult struct {
	Definition ToolDefinition
	Metadata   ToolMetadata
	Loaded     bool
}

// ToolIndexEntry is one row of BuildToolIndex's flattened listing.
type ToolIndexEntry struct {
	Name       string
	Definition ToolDefinition
	Metadata   ToolMetadata
	Loaded     bool
}

// ToolRegistry is the named catalog of every tool a deployment knows
// about, plus the subset currently loaded (exposed to the model). Grounded
// on tool.go's ToolRegistry (flat slice + linear Execute scan), generalized
// to a name-keyed map with a parallel loaded-name set so register/load/
// search/unregister are all O(1) or O(n) over the catalog rather than over
// every registered Tool's Definitions().
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	loaded  map[string]bool
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		entries: make(map[string]*registryEntry),
		loaded:  make(map[string]bool),
	}
}

// Register adds one tool to the catalog without loading it.
func (r *ToolRegistry) Register(def ToolDefinition, fn ToolFunc, meta ToolMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = &registryEntry{def: def, fn: fn, meta: meta}
}

// RegisteredTool is one (definition, implementation) pair for RegisterMany.
type RegisteredTool struct {
	Definition ToolDefinition
	Fn         ToolFunc
}

// RegisterMany registers a batch of tools sharing the same metadata.
func (r *ToolRegistry) RegisterMany(tools []RegisteredTool, meta ToolMetadata) {
	for _, t := range tools {
		r.Register(t.Definition, t.Fn, meta)
	}
}

// RegisterPlugin registers tools under an MCP-style prefixed name,
// `mcp__<prefix>__<tool>` (§4.4.3's eager-loading default naming).
func (r *ToolRegistry) RegisterPlugin(prefix string, tools []RegisteredTool, meta ToolMetadata) {
	meta.Plugin = prefix
	for _, t := range tools {
		def := t.Definition
		unprefixed := def.Name
		def.Name = fmt.Sprintf("mcp__%s__%s", prefix, unprefixed)
		r.Register(def, t.Fn, meta)
	}
}

// Unregister removes a tool from the catalog and the loaded set.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
	delete(r.loaded, name)
}

// Load marks names as loaded, idempotently. Unknown names are reported in
// NotFound; already-loaded names are reported in Skipped.
func (r *ToolRegistry) Load(names []string) LoadReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	var report LoadReport
	for _, name := range names {
		entry, ok := r.entries[name]
		if !ok {
			report.NotFound = append(report.NotFound, name)
			continue
		}
		if r.loaded[name] {
			report.Skipped = append(report.Skipped, name)
			report.Tools = append(report.Tools, entry.def)
			continue
		}
		r.loaded[name] = true
		report.Loaded = append(report.Loaded, name)
		report.Tools = append(report.Tools, entry.def)
	}
	report.Success = len(report.NotFound) == 0
	return report
}

// LoadMatching loads every registered tool for which filter returns true.
func (r *ToolRegistry) LoadMatching(filter func(name string, meta ToolMetadata) bool) LoadReport {
	r.mu.RLock()
	var names []string
	for name, entry := range r.entries {
		if filter(name, entry.meta) {
			names = append(names, name)
		}
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return r.Load(names)
}

// Search matches q.Query (case-insensitive substring) against a tool's
// name, description, or any tag (§4.4.1), additionally filtered by
// plugin/category/tags/includeLoaded, ordered by name, capped at q.Limit
// (0 = unlimited).
func (r *ToolRegistry) Search(q SearchQuery) []SearchResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(q.Query)
	var names []string
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []SearchResult
	for _, name := range names {
		entry := r.entries[name]
		if q.Plugin != "" && entry.meta.Plugin != q.Plugin {
			continue
		}
		if q.Category != "" && entry.meta.Category != q.Category {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(entry.meta.Tags, q.Tags) {
			continue
		}
		loaded := r.loaded[name]
		if loaded && !q.IncludeLoaded {
			continue
		}
		if needle != "" && !matchesQuery(needle, name, entry.def.Description, entry.meta.Tags) {
			continue
		}
		results = append(results, SearchResult{Definition: entry.def, Metadata: entry.meta, Loaded: loaded})
		if q.Limit > 0 && len(results) >= q.Limit {
			break
		}
	}
	return results
}

func matchesQuery(needle, name, description string, tags []string) bool {
	if strings.Contains(strings.ToLower(name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(description), needle) {
		return true
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// GetLoadedTools returns definitions for every currently loaded tool,
// ordered by name — this is what the model-SDK request's Tools field is
// built from.
func (r *ToolRegistry) GetLoadedTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.loaded {
		if r.loaded[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// ListAll returns every registered definition, loaded or not, ordered by
// name.
func (r *ToolRegistry) ListAll() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// BuildToolIndex flattens the catalog for meta-tool consumption
// (search_tools); includePlugins controls whether plugin-prefixed tools
// are included.
func (r *ToolRegistry) BuildToolIndex(includePlugins bool) []ToolIndexEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var index []ToolIndexEntry
	for _, name := range names {
		entry := r.entries[name]
		if !includePlugins && entry.meta.Plugin != "" {
			continue
		}
		index = append(index, ToolIndexEntry{
			Name: name, Definition: entry.def, Metadata: entry.meta, Loaded: r.loaded[name],
		})
	}
	return index
}

// Reset clears the loaded set but keeps the catalog.
func (r *ToolRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = make(map[string]bool)
}

// Clear empties both the catalog and the loaded set.
func (r *ToolRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*registryEntry)
	r.loaded = make(map[string]bool)
}

// Execute dispatches a tool call by name. The tool need not be in the
// loaded set: call_tool (§4.4.3) invokes deferred tools directly.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args []byte) (ToolResult, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ToolResult{Success: false, Error: "unknown tool: " + name}, nil
	}
	return entry.fn(ctx, args)
}
