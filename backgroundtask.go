package agentrt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// BackgroundTaskStatus is the lifecycle of a background task (§3).
// Transitions are monotonic: pending → running → {completed|failed|killed}.
// Terminal states are sinks.
type BackgroundTaskStatus string

const (
	TaskPending   BackgroundTaskStatus = "pending"
	TaskRunning   BackgroundTaskStatus = "running"
	TaskCompleted BackgroundTaskStatus = "completed"
	TaskFailed    BackgroundTaskStatus = "failed"
	TaskKilled    BackgroundTaskStatus = "killed"
)

// IsTerminal reports whether status is a final, sink state.
func (s BackgroundTaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskKilled
}

// BackgroundTask is the §3 record T for a subagent or tool invocation
// running on its own continuation, tracked by the session driver (§4.7.4).
type BackgroundTask struct {
	ID           string               `json:"id"`
	SubagentType string               `json:"subagent_type"`
	Description  string               `json:"description"`
	Status       BackgroundTaskStatus `json:"status"`
	Result       string               `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	CreatedAt    string               `json:"created_at"`
	UpdatedAt    string               `json:"updated_at"`
	CompletedAt  string               `json:"completed_at,omitempty"`

	cancel context.CancelFunc
}

// TaskFunc is the work a background task runs. It must honour ctx
// cancellation (Kill) promptly (§5).
type TaskFunc func(ctx context.Context) (result string, err error)

// TaskManager tracks background tasks and exposes a completion-event
// channel so the session driver can await the first task to reach a
// terminal state (§8: waitForNextCompletion), grounded on handle.go's
// atomic-state-plus-channel-close pattern and scheduler.go's background
// continuation idiom.
type TaskManager struct {
	mu        sync.Mutex
	tasks     map[string]*BackgroundTask
	completed chan string // task IDs that just went terminal
	logger    *slog.Logger
}

// NewTaskManager returns an empty task manager.
func NewTaskManager(logger *slog.Logger) *TaskManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskManager{
		tasks:     make(map[string]*BackgroundTask),
		completed: make(chan string, 64),
		logger:    logger,
	}
}

// Spawn registers a new task in pending state and runs fn in a goroutine.
func (m *TaskManager) Spawn(ctx context.Context, subagentType, description string, fn TaskFunc) *BackgroundTask {
	ctx, cancel := context.WithCancel(ctx)
	now := NowISO()
	t := &BackgroundTask{
		ID:           NewID(),
		SubagentType: subagentType,
		Description:  description,
		Status:       TaskPending,
		CreatedAt:    now,
		UpdatedAt:    now,
		cancel:       cancel,
	}
	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	go func() {
		m.setStatus(t.ID, TaskRunning, "", "")
		result, err := func() (res string, rerr error) {
			defer func() {
				if p := recover(); p != nil {
					rerr = fmt.Errorf("background task panic: %v", p)
				}
			}()
			return fn(ctx)
		}()

		if ctx.Err() != nil {
			m.setStatus(t.ID, TaskKilled, "", "")
			return
		}
		if err != nil {
			m.setStatus(t.ID, TaskFailed, "", err.Error())
			return
		}
		m.setStatus(t.ID, TaskCompleted, result, "")
	}()

	return t
}

func (m *TaskManager) setStatus(id string, status BackgroundTaskStatus, result, errMsg string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	t.Status = status
	t.Result = result
	t.Error = errMsg
	t.UpdatedAt = NowISO()
	if status.IsTerminal() {
		t.CompletedAt = t.UpdatedAt
	}
	m.mu.Unlock()

	if status.IsTerminal() {
		m.logger.Info("background task finished", "task_id", id, "status", string(status))
		select {
		case m.completed <- id:
		default:
			// buffer full: WaitForNextCompletion will still observe the
			// task via the tasks map on its next poll of pending work.
		}
	}
}

// Get returns a copy of the task by ID.
func (m *TaskManager) Get(id string) (BackgroundTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return BackgroundTask{}, false
	}
	cp := *t
	cp.cancel = nil
	return cp, true
}

// Pending reports whether any task is in a non-terminal state.
func (m *TaskManager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if !t.Status.IsTerminal() {
			return true
		}
	}
	return false
}

// Kill transitions a task from running to killed. Always permitted on a
// non-terminal task (§5); no-op on an already-terminal task. An unknown
// task ID returns ErrBackgroundTaskNotFound.
func (m *TaskManager) Kill(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return ErrBackgroundTaskNotFound
	}
	if t.Status.IsTerminal() {
		return nil
	}
	t.cancel()
	return nil
}

// Remove deletes a task from the table. Permitted only from a terminal
// state (§3 lifecycle invariant).
func (m *TaskManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrBackgroundTaskNotFound
	}
	if !t.Status.IsTerminal() {
		return ErrInvalidState
	}
	delete(m.tasks, id)
	return nil
}

// WaitForNextCompletion blocks until the first task reaches a terminal
// state, returning it. If tasks already reached terminal state before
// this call (and are still present), it returns one of those immediately.
func (m *TaskManager) WaitForNextCompletion(ctx context.Context) (BackgroundTask, error) {
	if t, ok := m.firstTerminal(); ok {
		return t, nil
	}
	select {
	case id := <-m.completed:
		t, ok := m.Get(id)
		if !ok {
			return m.WaitForNextCompletion(ctx)
		}
		return t, nil
	case <-ctx.Done():
		return BackgroundTask{}, ctx.Err()
	}
}

func (m *TaskManager) firstTerminal() (BackgroundTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Status.IsTerminal() {
			cp := *t
			cp.cancel = nil
			return cp, true
		}
	}
	return BackgroundTask{}, false
}
