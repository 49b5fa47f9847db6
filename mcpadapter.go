package agentrt

import "context"

// NewMCPEventAdapter returns an mcp.Manager EventFunc-compatible callback
// (signature func(event, server string, err error)) that fires
// MCPConnectionFailed/MCPConnectionRestored hook dispatches through hooks.
// Kept in this package rather than mcp's, since the mcp package must not
// import agentrt to avoid a cycle (mcp/manager.go documents the same
// boundary from its side); a caller wires this function in as the
// mcp.Manager's onEvent callback.
func NewMCPEventAdapter(hooks *HookRegistry, sessionID, cwd string) func(event, server string, err error) {
	return func(event, server string, err error) {
		var eventName HookEventName
		var errMsg string
		switch event {
		case "failed":
			eventName = MCPConnectionFailed
			if err != nil {
				errMsg = (&MCPConnectionError{Server: server, Err: err}).Error()
			}
		case "restored":
			eventName = MCPConnectionRestored
		default:
			return
		}

		hooks.Dispatch(context.Background(), HookInput{
			HookEventName: eventName,
			SessionID:     sessionID,
			Cwd:           cwd,
			ToolName:      server,
			Error:         errMsg,
		})
	}
}
