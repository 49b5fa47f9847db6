package agentrt

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Skill bundles an optional tool set with an instruction string or a
// function of an argument, plus a list of other skills it depends on
// (§4.4.2).
type Skill struct {
	Name         string
	Description  string
	Instructions string
	// InstructionsFn, when set, takes precedence over Instructions and is
	// called with the argument Load was invoked with.
	InstructionsFn func(arg string) string
	Tools          []string
	Tags           []string
	Dependencies   []string
}

func (s Skill) resolve(arg string) string {
	if s.InstructionsFn != nil {
		return s.InstructionsFn(arg)
	}
	return s.Instructions
}

// LoadedSkill is what SkillRegistry.Load returns: the aggregate tool set
// and prompt text from the requested skill and every transitively loaded
// dependency, plus the list of dependencies loaded as a side effect
// (§4.4.2).
type LoadedSkill struct {
	Tools        []string
	Prompt       string
	Dependencies []string
}

// SkillRegistry holds named skill bundles and resolves their dependency
// graphs breadth-first. Grounded on tools/skill/skill.go's skill-as-
// instruction-package model, generalized from a single flat record (no
// dependency field) to a dependency graph per §4.4.2.
type SkillRegistry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewSkillRegistry returns an empty skill registry.
func NewSkillRegistry() *SkillRegistry {
	return &SkillRegistry{skills: make(map[string]Skill)}
}

// Register adds or replaces a skill bundle.
func (r *SkillRegistry) Register(s Skill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name] = s
}

// Get returns a skill by name.
func (r *SkillRegistry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Search matches q (case-insensitive substring) against a skill's name,
// description, or any tag, mirroring ToolRegistry.Search's semantics.
func (r *SkillRegistry) Search(query string) []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	needle := strings.ToLower(query)
	var out []Skill
	for _, name := range names {
		s := r.skills[name]
		if needle == "" || matchesQuery(needle, s.Name, s.Description, s.Tags) {
			out = append(out, s)
		}
	}
	return out
}

// Load resolves name's dependency graph breadth-first, cycle-free, and
// aggregates tools and prompts from the requested skill and every
// transitively loaded dependency (§4.4.2). arg is passed to each skill's
// InstructionsFn, if it has one. Dependencies are loaded in BFS discovery
// order; the requested skill's own prompt is appended last so it can
// build on its dependencies' instructions.
func (r *SkillRegistry) Load(name, arg string) (LoadedSkill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root, ok := r.skills[name]
	if !ok {
		return LoadedSkill{}, fmt.Errorf("agentrt: unknown skill %q", name)
	}

	visited := map[string]bool{name: true}
	queue := append([]string(nil), root.Dependencies...)
	var depOrder []string
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]
		if visited[dep] {
			continue
		}
		visited[dep] = true
		depSkill, ok := r.skills[dep]
		if !ok {
			return LoadedSkill{}, fmt.Errorf("agentrt: skill %q depends on unknown skill %q", name, dep)
		}
		depOrder = append(depOrder, dep)
		queue = append(queue, depSkill.Dependencies...)
	}

	var tools []string
	var prompts []string
	seenTool := make(map[string]bool)
	for _, dep := range depOrder {
		s := r.skills[dep]
		for _, t := range s.Tools {
			if !seenTool[t] {
				seenTool[t] = true
				tools = append(tools, t)
			}
		}
		if p := s.resolve(arg); p != "" {
			prompts = append(prompts, p)
		}
	}
	for _, t := range root.Tools {
		if !seenTool[t] {
			seenTool[t] = true
			tools = append(tools, t)
		}
	}
	if p := root.resolve(arg); p != "" {
		prompts = append(prompts, p)
	}

	return LoadedSkill{
		Tools:        tools,
		Prompt:       strings.Join(prompts, "\n\n"),
		Dependencies: depOrder,
	}, nil
}
