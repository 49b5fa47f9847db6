package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// SessionState is the session driver's top-level state (§4.7).
type SessionState string

const (
	SessionIdle               SessionState = "idle"
	SessionRunning             SessionState = "running"
	SessionWaitingForInput     SessionState = "waiting_for_input"
	SessionGenerationComplete SessionState = "generation_complete"
	SessionError               SessionState = "error"
	SessionHandoff             SessionState = "handoff"
)

// SessionOutputType names one record in the ordered output sequence a
// session yields as it consumes user input (§4.7).
type SessionOutputType string

const (
	OutputGenerationComplete    SessionOutputType = "generation_complete"
	OutputInterrupt             SessionOutputType = "interrupt"
	OutputAgentHandoff          SessionOutputType = "agent_handoff"
	OutputError                 SessionOutputType = "error"
	OutputWaitingForInput       SessionOutputType = "waiting_for_input"
	OutputBackgroundTaskComplete SessionOutputType = "background_task_complete"
)

// SessionOutput is one record of the ordered output sequence (§4.7).
// At most one of the payload/error fields is populated, keyed by Type
// (none for waiting_for_input).
type SessionOutput struct {
	Type           SessionOutputType
	Result         *GenerateResult
	Interrupt      *InterruptDescriptor
	HandoffContext map[string]any
	Task           *BackgroundTask
	Err            error
}

// SessionConfig wires a session to the agents it can route between.
type SessionConfig struct {
	// Agents is the full set of agents reachable by name, including the
	// initial one. A handoff to a name not present here is an error
	// output, per §4.7's "Handoff target agent is null" case (an unknown
	// name is treated the same as a null target: there is nothing to
	// switch to).
	Agents map[string]*Agent
	// InitialAgent selects the starting entry from Agents.
	InitialAgent string
	// MaxHandoffDepth bounds the handoff stack; 0 uses the default.
	MaxHandoffDepth int
	// Tasks is the background task manager this session drains between
	// turns. Nil disables background-task awareness entirely.
	Tasks *TaskManager
	// AutoDrainTasks enables the §4.7.4 behavior of awaiting outstanding
	// background task completions before accepting the next user turn.
	AutoDrainTasks bool
	Logger         *slog.Logger
}

// Session drives one conversation: a single-threaded, cooperative turn
// loop over an agent (or chain of agents reached via handoff) that
// consumes user messages and yields an ordered output sequence (§4.7).
// Concurrent SendMessage/ResumeInterrupt calls are serialized by mu, one
// whole turn at a time — it models one cooperative continuation, matching
// §5's "a single agent turn is single-threaded cooperative".
type Session struct {
	mu sync.Mutex

	agents      map[string]*Agent
	currentName string
	state       SessionState
	stack       *handoffStack
	tasks       *TaskManager
	autoDrain   bool
	logger      *slog.Logger

	// pendingInterruptID is set while state == waiting_for_input because
	// of an unresolved tool-use interrupt (as opposed to simply awaiting
	// the next user message after a completed turn).
	pendingInterruptID string
}

// NewSession constructs a session rooted at cfg.InitialAgent.
func NewSession(cfg SessionConfig) (*Session, error) {
	if _, ok := cfg.Agents[cfg.InitialAgent]; !ok {
		return nil, fmt.Errorf("agentrt: initial agent %q not found", cfg.InitialAgent)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		agents:      cfg.Agents,
		currentName: cfg.InitialAgent,
		state:       SessionIdle,
		stack:       newHandoffStack(cfg.MaxHandoffDepth),
		tasks:       cfg.Tasks,
		autoDrain:   cfg.AutoDrainTasks,
		logger:      logger,
	}, nil
}

// State returns the session's current top-level state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentAgent returns the name of the agent that will handle the next
// generate call.
func (s *Session) CurrentAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentName
}

// SendMessage takes a pending user message, drains due background-task
// completions, then drives generation until the turn settles into
// waiting_for_input, an interrupt, or an error (§4.7 steps 1-4).
func (s *Session) SendMessage(ctx context.Context, text string) ([]SessionOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingInterruptID != "" {
		return nil, fmt.Errorf("agentrt: session has an unresolved interrupt %q; call ResumeInterrupt first", s.pendingInterruptID)
	}

	outs := s.drainBackgroundTasks(ctx)
	s.state = SessionRunning

	agent, ok := s.agents[s.currentName]
	if !ok {
		return outs, fmt.Errorf("agentrt: current agent %q not registered", s.currentName)
	}
	result, err := agent.Generate(ctx, GenerateOptions{Messages: []ChatMessage{UserMessage(text)}})
	return s.settle(ctx, outs, result, err)
}

// ResumeInterrupt supplies a human decision for the in-flight tool-use
// interrupt and continues the turn from where it paused (§4.7's
// waiting_for_input → running transition on resumeInterrupt).
func (s *Session) ResumeInterrupt(ctx context.Context, interruptID string, decision HumanDecision) ([]SessionOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingInterruptID != interruptID {
		return nil, fmt.Errorf("agentrt: no pending interrupt %q on this session", interruptID)
	}
	s.state = SessionRunning
	s.pendingInterruptID = ""

	agent, ok := s.agents[s.currentName]
	if !ok {
		return nil, fmt.Errorf("agentrt: current agent %q not registered", s.currentName)
	}
	result, err := agent.Resume(ctx, interruptID, decision)
	return s.settle(ctx, nil, result, err)
}

// settle dispatches a GenerateResult per §4.7 step 3, recursing through
// handoff chains (a handoff or handback immediately calls the new
// current agent before control returns to the caller) until the turn
// reaches a stable state.
func (s *Session) settle(ctx context.Context, outs []SessionOutput, result GenerateResult, err error) ([]SessionOutput, error) {
	if err != nil {
		s.state = SessionError
		return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
	}

	switch result.Status {
	case StatusComplete:
		s.state = SessionWaitingForInput
		return append(outs,
			SessionOutput{Type: OutputGenerationComplete, Result: &result},
			SessionOutput{Type: OutputWaitingForInput},
		), nil

	case StatusInterrupted:
		s.state = SessionWaitingForInput
		s.pendingInterruptID = result.Interrupt.ID
		return append(outs, SessionOutput{Type: OutputInterrupt, Interrupt: result.Interrupt}), nil

	case StatusHandoff:
		return s.dispatchHandoff(ctx, outs, result.Handoff)

	default:
		s.state = SessionError
		err := fmt.Errorf("agentrt: unknown generate status %q", result.Status)
		return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
	}
}

// dispatchHandoff implements §4.7 step 3's `handoff` case: push/pop the
// handoff stack, switch the current agent, emit agent_handoff, then
// immediately drive the new agent with the handoff context as its input
// — a handoff never returns control to the caller mid-chain.
func (s *Session) dispatchHandoff(ctx context.Context, outs []SessionOutput, req *HandoffRequest) ([]SessionOutput, error) {
	if req.IsHandback {
		frame, ok := s.stack.pop()
		if !ok {
			s.state = SessionError
			err := &HandoffError{Reason: "handback requested with an empty handoff stack"}
			return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
		}
		s.currentName = frame.AgentName
		s.stack.enteredNonResumable = false
	} else {
		if req.TargetAgent == "" {
			s.state = SessionError
			err := &HandoffError{Reason: "Handoff target agent is null"}
			return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
		}
		if _, ok := s.agents[req.TargetAgent]; !ok {
			s.state = SessionError
			err := &HandoffError{Reason: fmt.Sprintf("Handoff target agent %q is not registered", req.TargetAgent)}
			return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
		}
		if req.Resumable {
			if err := s.stack.push(s.currentName); err != nil {
				s.state = SessionError
				return append(outs, SessionOutput{Type: OutputError, Err: &HandoffError{Reason: err.Error()}}), nil
			}
		}
		s.currentName = req.TargetAgent
		s.stack.enteredNonResumable = !req.Resumable
	}

	s.state = SessionHandoff
	outs = append(outs, SessionOutput{Type: OutputAgentHandoff, HandoffContext: req.Context})

	agent, ok := s.agents[s.currentName]
	if !ok {
		s.state = SessionError
		err := &HandoffError{Reason: fmt.Sprintf("agent %q vanished mid-handoff", s.currentName)}
		return append(outs, SessionOutput{Type: OutputError, Err: err}), nil
	}
	s.state = SessionRunning
	result, err := agent.Generate(ctx, GenerateOptions{Messages: []ChatMessage{handoffContextMessage(req.Context)}})
	return s.settle(ctx, outs, result, err)
}

// handoffContextMessage renders a handoff's context payload as the first
// user-role message the receiving agent sees. §4.7 is silent on the exact
// wire shape; a JSON-encoded user message mirrors how tool results are
// already folded back into the conversation (ToolResultMessage) and keeps
// the receiving agent's prompt free of ad hoc templating.
func handoffContextMessage(ctx map[string]any) ChatMessage {
	if len(ctx) == 0 {
		return UserMessage("(handoff received with no context)")
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return UserMessage("(handoff received; context could not be serialized)")
	}
	return UserMessage(string(b))
}

// drainBackgroundTasks implements §4.7 step 4: block on outstanding
// background-task completions before the next user turn when configured
// to auto-drain, emitting each as a regular output. Each drained task is
// removed from the manager once reported so it is never reported twice.
func (s *Session) drainBackgroundTasks(ctx context.Context) []SessionOutput {
	var outs []SessionOutput
	if !s.autoDrain || s.tasks == nil {
		return outs
	}
	for s.tasks.Pending() {
		t, err := s.tasks.WaitForNextCompletion(ctx)
		if err != nil {
			break
		}
		outs = append(outs, SessionOutput{Type: OutputBackgroundTaskComplete, Task: &t})
		_ = s.tasks.Remove(t.ID)
	}
	return outs
}
