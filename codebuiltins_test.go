package agentrt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// fakeCodeRunner exercises NewExecuteCodeFunc without a real interpreter.
type fakeCodeRunner struct {
	gotDispatch CodeDispatchFunc
	result      CodeResult
	err         error
}

func (f *fakeCodeRunner) Run(ctx context.Context, req CodeRequest, dispatch CodeDispatchFunc) (CodeResult, error) {
	f.gotDispatch = dispatch
	if f.err != nil {
		return CodeResult{}, f.err
	}
	// Exercise the dispatch bridge the same way a real interpreter's
	// call_tool() would, so the test proves reg.Execute is reachable
	// through the CodeDispatchFunc passed to Run.
	if req.Code == "dispatch-probe" {
		res, derr := dispatch(ctx, "echo", json.RawMessage(`{"text":"hi"}`))
		if derr != nil {
			return CodeResult{Error: derr.Error()}, nil
		}
		return CodeResult{Output: res.Output}, nil
	}
	return f.result, nil
}

func TestRegisterCodeExecutionToolSuccess(t *testing.T) {
	reg := NewToolRegistry()
	runner := &fakeCodeRunner{result: CodeResult{Output: `{"answer":42}`, Logs: "debug"}}
	RegisterCodeExecutionTool(reg, runner)
	reg.Load([]string{"execute_code"})

	res, err := reg.Execute(context.Background(), "execute_code", json.RawMessage(`{"code":"set_result({'answer':42})"}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Output != `{"answer":42}` {
		t.Errorf("Output = %q, want %q", res.Output, `{"answer":42}`)
	}
	if res.Message != "debug" {
		t.Errorf("Message = %q, want %q", res.Message, "debug")
	}
}

func TestRegisterCodeExecutionToolRunnerError(t *testing.T) {
	reg := NewToolRegistry()
	runner := &fakeCodeRunner{err: errors.New("interpreter crashed")}
	RegisterCodeExecutionTool(reg, runner)
	reg.Load([]string{"execute_code"})

	res, err := reg.Execute(context.Background(), "execute_code", json.RawMessage(`{"code":"whatever"}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Error != "interpreter crashed" {
		t.Errorf("Error = %q, want %q", res.Error, "interpreter crashed")
	}
}

func TestRegisterCodeExecutionToolCodeLevelError(t *testing.T) {
	reg := NewToolRegistry()
	runner := &fakeCodeRunner{result: CodeResult{Error: "blocked: dangerous pattern"}}
	RegisterCodeExecutionTool(reg, runner)
	reg.Load([]string{"execute_code"})

	res, err := reg.Execute(context.Background(), "execute_code", json.RawMessage(`{"code":"os.system('rm -rf /')"}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if res.Error != "blocked: dangerous pattern" {
		t.Errorf("Error = %q, want %q", res.Error, "blocked: dangerous pattern")
	}
}

func TestExecuteCodeFuncRejectsMissingCode(t *testing.T) {
	reg := NewToolRegistry()
	runner := &fakeCodeRunner{}
	fn := NewExecuteCodeFunc(runner, reg)

	res, err := fn(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure for missing code")
	}
}

func TestExecuteCodeFuncDispatchesThroughRegistry(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(ToolDefinition{Name: "echo"}, func(_ context.Context, args json.RawMessage) (ToolResult, error) {
		var a struct {
			Text string `json:"text"`
		}
		json.Unmarshal(args, &a)
		return ToolResult{Success: true, Output: a.Text}, nil
	}, ToolMetadata{})
	reg.Load([]string{"echo"})

	runner := &fakeCodeRunner{}
	RegisterCodeExecutionTool(reg, runner)
	reg.Load([]string{"execute_code"})

	res, err := reg.Execute(context.Background(), "execute_code", json.RawMessage(`{"code":"dispatch-probe"}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if !res.Success || res.Output != "hi" {
		t.Fatalf("expected dispatch bridge to reach echo tool, got %+v", res)
	}
}
