package agentrt

import (
	"fmt"
	"strings"
)

// TodoStatus is the lifecycle of a single todo item (§3).
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is one entry in an agent's ordered task list.
type Todo struct {
	ID        string     `json:"id"`
	Content   string     `json:"content"`
	Status    TodoStatus `json:"status"`
	CreatedAt string     `json:"created_at"`
}

// FileRecord is a virtual file: an ordered sequence of lines plus the
// timestamps required by the §3 invariants (created_at ≤ modified_at).
type FileRecord struct {
	Content    []string `json:"content"`
	CreatedAt  string   `json:"created_at"`
	ModifiedAt string   `json:"modified_at"`
}

// State is the per-agent state S (§3): an ordered todo list and a virtual
// filesystem keyed by canonical absolute path. It is a plain value
// container with no policy — all mutation is local and sequential within
// a single agent turn (§4.1).
type State struct {
	Todos []Todo                 `json:"todos"`
	Files map[string]*FileRecord `json:"files"`
}

// NewState returns an empty, ready-to-use State.
func NewState() *State {
	return &State{Files: make(map[string]*FileRecord)}
}

// CanonicalPath normalizes a path per §3: leading "/", no trailing "/"
// except for the root itself.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// AddTodo appends a new todo in pending status and returns it.
func (s *State) AddTodo(content string) Todo {
	t := Todo{ID: NewID(), Content: content, Status: TodoPending, CreatedAt: NowISO()}
	s.Todos = append(s.Todos, t)
	return t
}

// SetTodoStatus transitions a todo by ID. Returns false if not found.
func (s *State) SetTodoStatus(id string, status TodoStatus) bool {
	for i := range s.Todos {
		if s.Todos[i].ID == id {
			s.Todos[i].Status = status
			return true
		}
	}
	return false
}

// WriteFile creates or overwrites a virtual file, splitting content on
// newlines. created_at is preserved on overwrite; modified_at is bumped.
func (s *State) WriteFile(path, content string) FileRecord {
	path = CanonicalPath(path)
	lines := splitLines(content)
	now := NowISO()
	existing, ok := s.Files[path]
	rec := &FileRecord{Content: lines, ModifiedAt: now}
	if ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	s.Files[path] = rec
	return *rec
}

// ReadFile returns a deep copy of the stored record, or false if absent.
func (s *State) ReadFile(path string) (FileRecord, bool) {
	path = CanonicalPath(path)
	rec, ok := s.Files[path]
	if !ok {
		return FileRecord{}, false
	}
	cp := FileRecord{
		Content:    append([]string(nil), rec.Content...),
		CreatedAt:  rec.CreatedAt,
		ModifiedAt: rec.ModifiedAt,
	}
	return cp, true
}

// EditFile performs an exact-match find/replace per the backend's edit
// semantics (§4.1, §8: succeeds iff find occurs exactly once unless
// replaceAll).
func (s *State) EditFile(path, find, replace string, replaceAll bool) error {
	path = CanonicalPath(path)
	rec, ok := s.Files[path]
	if !ok {
		return fmt.Errorf("file not found: %s", path)
	}
	joined := strings.Join(rec.Content, "\n")
	count := strings.Count(joined, find)
	if count == 0 {
		return fmt.Errorf("no occurrences of find string in %s", path)
	}
	if !replaceAll && count > 1 {
		return fmt.Errorf("occurrences=%d: find string is not unique in %s", count, path)
	}
	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(joined, find, replace)
	} else {
		updated = strings.Replace(joined, find, replace, 1)
	}
	rec.Content = splitLines(updated)
	rec.ModifiedAt = NowISO()
	return nil
}

// CloneDeep returns an independent copy of the state (used for checkpoint
// save/load).
func (s *State) CloneDeep() *State {
	out := &State{
		Todos: append([]Todo(nil), s.Todos...),
		Files: make(map[string]*FileRecord, len(s.Files)),
	}
	for p, rec := range s.Files {
		out.Files[p] = &FileRecord{
			Content:    append([]string(nil), rec.Content...),
			CreatedAt:  rec.CreatedAt,
			ModifiedAt: rec.ModifiedAt,
		}
	}
	return out
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(content, "\n")
}
