package agentrt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

const defaultHookTimeoutMs = 5000

// compiledMatcher is a HookMatcher (§3 "Hook registration H") with its
// tool-name pattern pre-compiled at registration time.
type compiledMatcher struct {
	hasPattern bool
	regex      *regexp.Regexp // nil when the pattern didn't compile as regex
	literal    string         // used when regex is nil: literal-string fallback (§4.2.3)
	hooks      []HookCallback
	timeoutMs  int
}

func newCompiledMatcher(pattern string, timeoutMs int, hooks []HookCallback) *compiledMatcher {
	if timeoutMs <= 0 {
		timeoutMs = defaultHookTimeoutMs
	}
	m := &compiledMatcher{hooks: hooks, timeoutMs: timeoutMs}
	if pattern == "" {
		return m // undefined matcher: matches all tool names
	}
	m.hasPattern = true
	if re, err := regexp.Compile(pattern); err == nil {
		m.regex = re
	} else {
		m.literal = pattern
	}
	return m
}

func (m *compiledMatcher) matches(toolName string) bool {
	if !m.hasPattern {
		return true
	}
	if m.regex != nil {
		return m.regex.MatchString(toolName)
	}
	return m.literal == toolName
}

// HookRegistry is the hook engine (C3): register by event and optional
// tool-name regex, dispatch in registration order, aggregate outputs.
// Grounded on processor.go's ProcessorChain (bucket-at-Add, ordered run)
// generalized from fixed Go interfaces to named events with matchers, and
// on suspend.go/loop.go's timeout-and-cancellation idioms.
type HookRegistry struct {
	mu       sync.RWMutex
	byEvent  map[HookEventName][]*compiledMatcher
	errSink  func(error)
	tracer   Tracer
	logger   *slog.Logger
}

// HookRegistryOption configures a HookRegistry.
type HookRegistryOption func(*HookRegistry)

// WithErrorSink sets the diagnostic sink for swallowed hook errors/timeouts
// (§4.2.5: "a diagnostic is written to a configurable error sink").
func WithErrorSink(sink func(error)) HookRegistryOption {
	return func(r *HookRegistry) { r.errSink = sink }
}

// WithHookTracer attaches a Tracer; each matcher dispatch opens a span.
func WithHookTracer(t Tracer) HookRegistryOption {
	return func(r *HookRegistry) { r.tracer = t }
}

// NewHookRegistry returns an empty hook engine.
func NewHookRegistry(opts ...HookRegistryOption) *HookRegistry {
	r := &HookRegistry{
		byEvent: make(map[HookEventName][]*compiledMatcher),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	if r.errSink == nil {
		r.errSink = func(err error) { r.logger.Warn("hook error swallowed", "error", err) }
	}
	return r
}

// Register adds a matcher for event. toolNameRegex="" matches every tool
// name (and is the only sensible value for non-tool-call events).
// timeoutMs<=0 uses the default (5000ms). Dynamic registration is
// append-only (§9): dispatch always iterates a snapshot copy, so
// re-entrant registration during dispatch never mutates an in-flight run.
func (r *HookRegistry) Register(event HookEventName, toolNameRegex string, timeoutMs int, hooks ...HookCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEvent[event] = append(r.byEvent[event], newCompiledMatcher(toolNameRegex, timeoutMs, hooks))
}

// Dispatch runs every matcher registered for input.HookEventName whose
// pattern matches input.ToolName (matchers without a pattern always
// match), in registration order, and returns every contributing
// HookOutput as a flat list — the aggregation helpers in hookaggregate.go
// are pure functions of that list (§4.2.3, §4.2.4).
func (r *HookRegistry) Dispatch(ctx context.Context, input HookInput) []HookOutput {
	r.mu.RLock()
	matchers := append([]*compiledMatcher(nil), r.byEvent[input.HookEventName]...)
	r.mu.RUnlock()

	var all []HookOutput
	for _, m := range matchers {
		if !m.matches(input.ToolName) {
			continue
		}
		all = append(all, r.runMatcher(ctx, m, input)...)
	}
	return all
}

// runMatcher awaits all hooks in m concurrently, bounded by m.timeoutMs.
// A hook that has not settled when the timer fires, that returns an
// error, or that panics contributes the zero HookOutput{} (§4.2.5, §8
// Isolation) — siblings are unaffected because each hook writes to its
// own result slot via a buffered channel, never touching a shared slice.
func (r *HookRegistry) runMatcher(parent context.Context, m *compiledMatcher, input HookInput) []HookOutput {
	n := len(m.hooks)
	if n == 0 {
		return nil
	}

	var span Span
	ctx := parent
	if r.tracer != nil {
		ctx, span = r.tracer.Start(parent, "hook.matcher",
			StringAttr("event", string(input.HookEventName)),
			IntAttr("hook_count", n))
		defer span.End()
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(m.timeoutMs)*time.Millisecond)
	defer cancel()

	type indexed struct {
		i   int
		out HookOutput
	}
	resultCh := make(chan indexed, n)
	for i, h := range m.hooks {
		go func(i int, h HookCallback) {
			out := r.safeInvoke(ctx, i, input, h)
			resultCh <- indexed{i, out}
		}(i, h)
	}

	results := make([]HookOutput, n)
	settled := make([]bool, n)
	remaining := n
	for remaining > 0 {
		select {
		case res := <-resultCh:
			results[res.i] = res.out
			settled[res.i] = true
			remaining--
		case <-ctx.Done():
			// Timeout: slots not yet received stay HookOutput{} (zero value).
			if span != nil {
				span.Event("hook.matcher.timeout")
			}
			for i, ok := range settled {
				if !ok {
					r.errSink(&HookTimeoutError{Event: input.HookEventName, HookIndex: i, TimeoutMs: m.timeoutMs})
				}
			}
			return results
		}
	}
	return results
}

func (r *HookRegistry) safeInvoke(ctx context.Context, idx int, input HookInput, h HookCallback) (out HookOutput) {
	defer func() {
		if p := recover(); p != nil {
			r.errSink(fmt.Errorf("hook %d for event %s panicked: %v", idx, input.HookEventName, p))
			out = HookOutput{}
		}
	}()
	res, err := h(ctx, input)
	if err != nil {
		r.errSink(fmt.Errorf("hook %d for event %s failed: %w", idx, input.HookEventName, err))
		return HookOutput{}
	}
	return res
}
