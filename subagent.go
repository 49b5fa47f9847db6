package agentrt

// SubagentDefinition describes a subagent a parent agent can delegate to
// (§4.5).
type SubagentDefinition struct {
	Type         string
	Description  string
	SystemPrompt string
	// Tools, if non-nil, restricts the subagent to this subset of the
	// parent's loaded tool names.
	Tools []string
	MaxSteps int
	// InterruptOn maps a tool name to whether that tool's `ask` permission
	// should raise an interrupt even under a permissive mode.
	InterruptOn map[string]bool
	Output      *SubagentOutputSpec
	Model       string
}

// SubagentOutputSpec constrains a subagent's final answer to a schema.
type SubagentOutputSpec struct {
	Schema      ResponseSchema
	Description string
}

// SubagentContext is the forked state a subagent runs against
// (§4.5.1), grounded on network.go/agentcore.go's subagent-dispatch
// idiom generalized to the explicit shareFiles/isolateTodos context-fork
// rules §4.5.1 specifies.
type SubagentContext struct {
	Files map[string]*FileRecord
	Todos []Todo

	shareFiles   bool
	isolateTodos bool
}

// CreateSubagentContext forks parentState for a subagent invocation.
// shareFiles=true aliases parentState.Files so writes are visible to the
// parent immediately; otherwise Files is a deep copy. isolateTodos=true
// starts from initialTodos (or empty); otherwise Todos is a deep copy of
// the parent's.
func CreateSubagentContext(parentState *State, shareFiles, isolateTodos bool, initialTodos []Todo) *SubagentContext {
	ctx := &SubagentContext{shareFiles: shareFiles, isolateTodos: isolateTodos}

	if shareFiles {
		ctx.Files = parentState.Files
	} else {
		ctx.Files = make(map[string]*FileRecord, len(parentState.Files))
		for path, rec := range parentState.Files {
			cp := *rec
			cp.Content = append([]string(nil), rec.Content...)
			ctx.Files[path] = &cp
		}
	}

	if isolateTodos {
		ctx.Todos = append([]Todo(nil), initialTodos...)
	} else {
		ctx.Todos = append([]Todo(nil), parentState.Todos...)
	}

	return ctx
}

// MergeSubagentContext folds a finished subagent's context back into
// parentState (§4.5.1). Files: a no-op when shared (the parent already
// sees every write through the aliased map); otherwise the union of keys
// is taken, with subagent-added files copied into the parent. Todos are
// never merged back — they are the subagent's private task list.
func MergeSubagentContext(parentState *State, ctx *SubagentContext) {
	if ctx.shareFiles {
		return
	}
	for path, rec := range ctx.Files {
		if _, exists := parentState.Files[path]; !exists {
			cp := *rec
			cp.Content = append([]string(nil), rec.Content...)
			parentState.Files[path] = &cp
		}
	}
}
