package agentrt

import (
	"context"
	"encoding/json"
)

// CodeToolsMetadata tags the execute_code builtin so ToolRegistry.Search/
// LoadMatching can select it as a group, mirroring FilesystemToolsMetadata.
var CodeToolsMetadata = ToolMetadata{Plugin: "code", Category: "code"}

type executeCodeArgs struct {
	Code    string `json:"code"`
	Runtime string `json:"runtime"`
}

// ExecuteCodeDefinition is the execute_code builtin, wired to a CodeRunner
// rather than a Backend — unlike bash, which runs one shell command and
// returns, code execution runs a whole script that can itself dispatch
// back into the tool registry via call_tool()/call_tools_parallel().
var ExecuteCodeDefinition = ToolDefinition{
	Name:        "execute_code",
	Description: "Execute code in a sandboxed interpreter. The code may call call_tool(name, args) or call_tools_parallel([(name, args), ...]) to invoke any other loaded tool, and must call set_result(value) to return structured output.",
	Parameters: json.RawMessage(`{"type":"object","properties":{
		"code":{"type":"string"},
		"runtime":{"type":"string"}
	},"required":["code"]}`),
}

// NewExecuteCodeFunc builds execute_code over runner, dispatching any
// call_tool/call_tools_parallel invocation straight through reg.Execute —
// reg.Execute's signature already matches CodeDispatchFunc, so no adapter
// is needed. RegisterCodeExecutionTool registers execute_code on reg
// itself, so reg does expose it to running code; the runner rejects a
// recursive execute_code call.
func NewExecuteCodeFunc(runner CodeRunner, reg *ToolRegistry) ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (ToolResult, error) {
		var a executeCodeArgs
		if err := json.Unmarshal(args, &a); err != nil || a.Code == "" {
			return ToolResult{Success: false, Error: "invalid arguments: code is required"}, nil
		}
		result, err := runner.Run(ctx, CodeRequest{Code: a.Code, Runtime: a.Runtime}, reg.Execute)
		if err != nil {
			return ToolResult{Success: false, Error: err.Error()}, nil
		}
		if result.Error != "" {
			return ToolResult{Success: false, Error: result.Error, Message: result.Logs}, nil
		}
		return ToolResult{Success: true, Output: result.Output, Message: result.Logs}, nil
	}
}

// RegisterCodeExecutionTool registers execute_code against runner. Callers
// opt in by constructing a CodeRunner (e.g. code.NewSubprocessRunner);
// there is no default, since running arbitrary code is a capability a
// backend must deliberately choose to grant, unlike the always-available
// filesystem builtins.
func RegisterCodeExecutionTool(reg *ToolRegistry, runner CodeRunner) {
	reg.Register(ExecuteCodeDefinition, NewExecuteCodeFunc(runner, reg), CodeToolsMetadata)
}
