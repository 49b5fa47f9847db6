package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
)

// PluginLoadMode controls how a plugin's tools are exposed to the primary
// agent (§4.4.3).
type PluginLoadMode struct {
	// Deferred: tools are registered but not exposed directly; only
	// search_tools/call_tool can reach them.
	Deferred bool
	// DelegateToSubagent: tools are not exposed to the primary agent at
	// all; a subagent definition is synthesised around them instead.
	DelegateToSubagent bool
	// SubagentPrompt seeds the synthesised subagent's system prompt when
	// DelegateToSubagent is set.
	SubagentPrompt string
}

// searchToolsArgs / useToolsArgs / callToolArgs / skillArgs are the JSON
// argument shapes for the §4.4.3 meta-tools.
type searchToolsArgs struct {
	Query         string   `json:"query"`
	Plugin        string   `json:"plugin"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	IncludeLoaded bool     `json:"includeLoaded"`
	Limit         int      `json:"limit"`
}

type callToolArgs struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type useToolsArgs struct {
	Tools  []string `json:"tools"`
	Plugin string   `json:"plugin"`
	Query  string   `json:"query"`
}

type skillArgs struct {
	Name string `json:"name"`
	Arg  string `json:"arg"`
}

// SearchToolsDefinition is the §4.4.3 search_tools meta-tool definition.
var SearchToolsDefinition = ToolDefinition{
	Name:        "search_tools",
	Description: "Search the tool catalog by name, description, tag, plugin, or category; returns candidate names and descriptions without loading them.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"query":{"type":"string"},
		"plugin":{"type":"string"},
		"category":{"type":"string"},
		"tags":{"type":"array","items":{"type":"string"}},
		"includeLoaded":{"type":"boolean"},
		"limit":{"type":"integer"}
	}}`),
}

// NewSearchToolsFunc builds the search_tools implementation over reg.
func NewSearchToolsFunc(reg *ToolRegistry) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a searchToolsArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &a); err != nil {
				return ToolResult{Success: false, Error: "invalid arguments: " + err.Error()}, nil
			}
		}
		results := reg.Search(SearchQuery{
			Query: a.Query, Plugin: a.Plugin, Category: a.Category,
			Tags: a.Tags, IncludeLoaded: a.IncludeLoaded, Limit: a.Limit,
		})
		out, err := json.Marshal(results)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

// CallToolDefinition is the §4.4.3 call_tool meta-tool definition.
var CallToolDefinition = ToolDefinition{
	Name:        "call_tool",
	Description: "Invoke a deferred tool by name directly, without first loading it into the active tool set.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"name":{"type":"string"},
		"arguments":{"type":"object"}
	},"required":["name"]}`),
}

// NewCallToolFunc builds the call_tool implementation over reg.
func NewCallToolFunc(reg *ToolRegistry) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a callToolArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Name == "" {
			return ToolResult{Success: false, Error: "invalid arguments: name is required"}, nil
		}
		return reg.Execute(ctx, a.Name, a.Arguments)
	}
}

// UseToolsDefinition is the §4.4.3 use_tools meta-tool definition.
var UseToolsDefinition = ToolDefinition{
	Name:        "use_tools",
	Description: "Load additional tools into the active tool set by explicit name list, plugin, or search query.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"tools":{"type":"array","items":{"type":"string"}},
		"plugin":{"type":"string"},
		"query":{"type":"string"}
	}}`),
}

type useToolsResult struct {
	Loaded        []string `json:"loaded"`
	AlreadyLoaded []string `json:"alreadyLoaded"`
	NotFound      []string `json:"notFound"`
}

// NewUseToolsFunc builds the use_tools implementation over reg. Exactly
// one of tools/plugin/query should be set; tools takes precedence, then
// plugin, then query.
func NewUseToolsFunc(reg *ToolRegistry) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a useToolsArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &a); err != nil {
				return ToolResult{Success: false, Error: "invalid arguments: " + err.Error()}, nil
			}
		}

		var report LoadReport
		switch {
		case len(a.Tools) > 0:
			report = reg.Load(a.Tools)
		case a.Plugin != "":
			report = reg.LoadMatching(func(_ string, meta ToolMetadata) bool { return meta.Plugin == a.Plugin })
		case a.Query != "":
			var names []string
			for _, r := range reg.Search(SearchQuery{Query: a.Query, IncludeLoaded: true}) {
				names = append(names, r.Definition.Name)
			}
			report = reg.Load(names)
		default:
			return ToolResult{Success: false, Error: "one of tools, plugin, or query is required"}, nil
		}

		out, err := json.Marshal(useToolsResult{
			Loaded: report.Loaded, AlreadyLoaded: report.Skipped, NotFound: report.NotFound,
		})
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

// SkillDefinition is the §4.4.2 skill meta-tool definition: loads a named
// skill bundle, including its dependency graph, and exposes its tools.
var SkillDefinition = ToolDefinition{
	Name:        "skill",
	Description: "Load a named skill bundle (and its dependencies) into the active tool set, and return its combined instructions.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"name":{"type":"string"},
		"arg":{"type":"string"}
	},"required":["name"]}`),
}

// NewSkillFunc builds the skill implementation over skills, loading the
// resulting tool set into reg as a side effect.
func NewSkillFunc(skills *SkillRegistry, reg *ToolRegistry) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a skillArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Name == "" {
			return ToolResult{Success: false, Error: "invalid arguments: name is required"}, nil
		}
		loaded, err := skills.Load(a.Name, a.Arg)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		if len(loaded.Tools) > 0 {
			reg.Load(loaded.Tools)
		}
		out, err := json.Marshal(loaded)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: string(out), Message: fmt.Sprintf("loaded skill %q with %d dependencies", a.Name, len(loaded.Dependencies))}, nil
	}
}
