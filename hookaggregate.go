package agentrt

// Aggregation helpers are pure functions of a HookOutput list (§4.2.4):
// the hook engine dispatches and collects outputs, these reduce them.

// aggregatePermission reduces a list of PermissionDecisions: deny > ask >
// allow, defaulting to allow. The first deny in list order wins the
// reason.
func aggregatePermission(outputs []HookOutput) (PermissionDecision, string) {
	decision := PermissionAllow
	reason := ""
	denyReason := ""
	sawDeny := false
	sawAsk := false
	for _, o := range outputs {
		switch o.PermissionDecision {
		case PermissionDeny:
			if !sawDeny {
				denyReason = o.PermissionReason
			}
			sawDeny = true
		case PermissionAsk:
			sawAsk = true
		}
	}
	switch {
	case sawDeny:
		decision, reason = PermissionDeny, denyReason
	case sawAsk:
		decision = PermissionAsk
	}
	return decision, reason
}

// aggregateRespondWith returns the first non-empty RespondWith in
// registration order, or nil.
func aggregateRespondWith(outputs []HookOutput) *HookResult {
	for _, o := range outputs {
		if o.RespondWith != nil {
			return o.RespondWith
		}
	}
	return nil
}

// aggregateUpdatedInput returns the first non-empty UpdatedInput in
// registration order, or nil.
func aggregateUpdatedInput(outputs []HookOutput) []byte {
	for _, o := range outputs {
		if len(o.UpdatedInput) > 0 {
			return o.UpdatedInput
		}
	}
	return nil
}

// aggregateUpdatedResult returns the first non-empty UpdatedResult in
// registration order, or nil.
func aggregateUpdatedResult(outputs []HookOutput) *HookResult {
	for _, o := range outputs {
		if o.UpdatedResult != nil {
			return o.UpdatedResult
		}
	}
	return nil
}

// aggregateRetryDecision returns the first non-empty RetryDecision in
// registration order, or nil.
func aggregateRetryDecision(outputs []HookOutput) *RetryDecision {
	for _, o := range outputs {
		if o.RetryDecision != nil {
			return o.RetryDecision
		}
	}
	return nil
}
