package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
)

// FilesystemToolsMetadata tags every builtin filesystem tool so
// ToolRegistry.Search/LoadMatching can select the whole group (e.g.
// `use_tools({plugin: "filesystem"})`).
var FilesystemToolsMetadata = ToolMetadata{Plugin: "filesystem", Category: "filesystem"}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileDefinition is the §4.1-backed write_file builtin.
var WriteFileDefinition = ToolDefinition{
	Name:        "write_file",
	Description: "Write content to a file, creating it or overwriting it in full.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"path":{"type":"string"},
		"content":{"type":"string"}
	},"required":["path","content"]}`),
}

// NewWriteFileFunc builds write_file over backend.
func NewWriteFileFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a writeFileArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
			return ToolResult{Success: false, Error: "invalid arguments: path is required"}, nil
		}
		res, err := backend.Write(ctx, a.Path, a.Content)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(res)
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// ReadFileDefinition is the §4.1-backed read_file builtin. Its output
// feeds the citation convention named in §4.1 ("the contract used by the
// filesystem tools and by read_file citations"): each returned line is
// prefixed "N→" so a later cite_source-style reference can point at an
// exact line.
var ReadFileDefinition = ToolDefinition{
	Name:        "read_file",
	Description: "Read a file, returning its lines prefixed with 1-indexed line numbers (N→line).",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"path":{"type":"string"},
		"offset":{"type":"integer"},
		"limit":{"type":"integer"}
	},"required":["path"]}`),
}

// NewReadFileFunc builds read_file over backend.
func NewReadFileFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a readFileArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
			return ToolResult{Success: false, Error: "invalid arguments: path is required"}, nil
		}
		out, err := backend.Read(ctx, a.Path, a.Offset, a.Limit)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: out}, nil
	}
}

type editFileArgs struct {
	Path       string `json:"path"`
	Find       string `json:"find"`
	Replace    string `json:"replace"`
	ReplaceAll bool   `json:"replaceAll"`
}

// EditFileDefinition is the §4.1/§8 exact-match edit_file builtin.
var EditFileDefinition = ToolDefinition{
	Name:        "edit_file",
	Description: "Replace an exact substring in a file. Fails unless the substring occurs exactly once, unless replaceAll is set.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"path":{"type":"string"},
		"find":{"type":"string"},
		"replace":{"type":"string"},
		"replaceAll":{"type":"boolean"}
	},"required":["path","find","replace"]}`),
}

// NewEditFileFunc builds edit_file over backend.
func NewEditFileFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a editFileArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
			return ToolResult{Success: false, Error: "invalid arguments: path is required"}, nil
		}
		if err := backend.Edit(ctx, a.Path, a.Find, a.Replace, a.ReplaceAll); err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		return ToolResult{Success: true, Output: fmt.Sprintf("edited %s", a.Path)}, nil
	}
}

type lsArgs struct {
	Dir string `json:"dir"`
}

// LsDefinition is the §4.1-backed ls builtin.
var LsDefinition = ToolDefinition{
	Name:        "ls",
	Description: "List files under a directory, recursively.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"dir":{"type":"string"}
	},"required":["dir"]}`),
}

// NewLsFunc builds ls over backend.
func NewLsFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a lsArgs
		if len(args) > 0 {
			if err := json.Unmarshal(args, &a); err != nil {
				return ToolResult{Success: false, Error: "invalid arguments: " + err.Error()}, nil
			}
		}
		if a.Dir == "" {
			a.Dir = "/"
		}
		entries, err := backend.LsInfo(ctx, a.Dir)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(entries)
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

type globArgs struct {
	Pattern string `json:"pattern"`
	Cwd     string `json:"cwd"`
}

// GlobDefinition is the §4.1-backed glob builtin (*, **, ?).
var GlobDefinition = ToolDefinition{
	Name:        "glob",
	Description: "Match files under cwd against a glob pattern (* within a segment, ** across any depth, ? for one character).",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"pattern":{"type":"string"},
		"cwd":{"type":"string"}
	},"required":["pattern"]}`),
}

// NewGlobFunc builds glob over backend.
func NewGlobFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a globArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Pattern == "" {
			return ToolResult{Success: false, Error: "invalid arguments: pattern is required"}, nil
		}
		if a.Cwd == "" {
			a.Cwd = "/"
		}
		matches, err := backend.GlobInfo(ctx, a.Pattern, a.Cwd)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(matches)
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

type grepArgs struct {
	Regex       string `json:"regex"`
	Path        string `json:"path"`
	IncludeGlob string `json:"includeGlob"`
}

// GrepDefinition is the §4.1-backed grep builtin.
var GrepDefinition = ToolDefinition{
	Name:        "grep",
	Description: "Search file contents by regular expression, optionally scoped to a path and filtered by an include glob.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"regex":{"type":"string"},
		"path":{"type":"string"},
		"includeGlob":{"type":"string"}
	},"required":["regex"]}`),
}

// NewGrepFunc builds grep over backend.
func NewGrepFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a grepArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Regex == "" {
			return ToolResult{Success: false, Error: "invalid arguments: regex is required"}, nil
		}
		matches, err := backend.GrepRaw(ctx, a.Regex, a.Path, a.IncludeGlob)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(matches)
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

type bashArgs struct {
	Command string `json:"command"`
}

// BashDefinition is the §4.1-backed bash builtin. Only register this
// against a backend whose SupportsExecute() is true — the capability is
// detected structurally, there is no generic fallback.
var BashDefinition = ToolDefinition{
	Name:        "bash",
	Description: "Run a shell command against the backend's working directory and return its exit code and combined output.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"command":{"type":"string"}
	},"required":["command"]}`),
}

// NewBashFunc builds bash over backend.
func NewBashFunc(backend Backend) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a bashArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Command == "" {
			return ToolResult{Success: false, Error: "invalid arguments: command is required"}, nil
		}
		res, err := backend.Execute(ctx, a.Command)
		if err != nil {
			if cbe, ok := err.(*CommandBlockedError); ok {
				return ToolResult{Success: false, Error: cbe.Error()}, nil
			}
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		out, _ := json.Marshal(res)
		return ToolResult{Success: true, Output: string(out)}, nil
	}
}

// RegisterFilesystemTools registers write_file/read_file/edit_file/ls/glob/
// grep against backend, and bash as well if backend.SupportsExecute()
// reports true (§4.1's structural capability detection — callers never
// need a type assertion on the concrete Backend implementation).
func RegisterFilesystemTools(reg *ToolRegistry, backend Backend) {
	reg.RegisterMany([]RegisteredTool{
		{Definition: WriteFileDefinition, Fn: NewWriteFileFunc(backend)},
		{Definition: ReadFileDefinition, Fn: NewReadFileFunc(backend)},
		{Definition: EditFileDefinition, Fn: NewEditFileFunc(backend)},
		{Definition: LsDefinition, Fn: NewLsFunc(backend)},
		{Definition: GlobDefinition, Fn: NewGlobFunc(backend)},
		{Definition: GrepDefinition, Fn: NewGrepFunc(backend)},
	}, FilesystemToolsMetadata)

	if backend.SupportsExecute() {
		reg.Register(BashDefinition, NewBashFunc(backend), FilesystemToolsMetadata)
	}
}
