package agentrt

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// StateBackend implements Backend purely in memory over a *State (§4.1's
// "pure state-backed" variant). It has no shell capability: Execute
// always returns ErrExecuteNotSupported, so callers must not register the
// bash tool against it. Grounded directly on state.go's WriteFile/
// ReadFile/EditFile, extended with the listing/search/read-formatting
// operations the backend contract adds on top.
type StateBackend struct {
	state *State
}

// NewStateBackend wraps an existing State. A nil state is replaced with a
// fresh NewState(), following the ready-value constructor pattern the rest
// of the package uses (NewToolRegistry, NewHookRegistry).
func NewStateBackend(state *State) *StateBackend {
	if state == nil {
		state = NewState()
	}
	return &StateBackend{state: state}
}

func (b *StateBackend) Write(ctx context.Context, path, content string) (WriteResult, error) {
	rec := b.state.WriteFile(path, content)
	_ = rec
	return WriteResult{Success: true, Path: CanonicalPath(path)}, nil
}

func (b *StateBackend) Read(ctx context.Context, path string, offset, limit int) (string, error) {
	rec, ok := b.state.ReadFile(path)
	if !ok {
		return "", fileNotFoundError(CanonicalPath(path))
	}
	return formatNumberedLines(rec.Content, offset, limit), nil
}

func (b *StateBackend) ReadRaw(ctx context.Context, path string) (FileRecord, error) {
	rec, ok := b.state.ReadFile(path)
	if !ok {
		return FileRecord{}, fileNotFoundError(CanonicalPath(path))
	}
	return rec, nil
}

func (b *StateBackend) Edit(ctx context.Context, path, find, replace string, replaceAll bool) error {
	return b.state.EditFile(path, find, replace, replaceAll)
}

func (b *StateBackend) LsInfo(ctx context.Context, dir string) ([]EntryInfo, error) {
	dir = CanonicalPath(dir)
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var entries []EntryInfo
	for p, rec := range b.state.Files {
		if p == dir {
			continue
		}
		if prefix != "/" && !strings.HasPrefix(p, prefix) {
			continue
		}
		if prefix == "/" && p == "/" {
			continue
		}
		entries = append(entries, EntryInfo{Path: p, IsDir: false, Size: int64(len(strings.Join(rec.Content, "\n"))), ModifiedAt: rec.ModifiedAt})
		seen[p] = true
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (b *StateBackend) GlobInfo(ctx context.Context, pattern, cwd string) ([]string, error) {
	cwd = CanonicalPath(cwd)
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	var matches []string
	for p := range b.state.Files {
		rel := relativeTo(p, cwd)
		if rel == "" {
			continue
		}
		if re.MatchString(rel) {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func (b *StateBackend) GrepRaw(ctx context.Context, regex, path, includeGlob string) ([]GrepMatch, error) {
	re, err := regexp.Compile(regex)
	if err != nil {
		return nil, fmt.Errorf("invalid grep pattern %q: %w", regex, err)
	}
	var includeRe *regexp.Regexp
	if includeGlob != "" {
		includeRe, err = globToRegexp(includeGlob)
		if err != nil {
			return nil, fmt.Errorf("invalid include glob %q: %w", includeGlob, err)
		}
	}

	var paths []string
	for p := range b.state.Files {
		if path != "" && CanonicalPath(path) != p && !strings.HasPrefix(p, CanonicalPath(path)+"/") {
			continue
		}
		if includeRe != nil && !includeRe.MatchString(strings.TrimPrefix(p, "/")) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var matches []GrepMatch
	for _, p := range paths {
		rec := b.state.Files[p]
		for i, line := range rec.Content {
			if re.MatchString(line) {
				matches = append(matches, GrepMatch{Path: p, Line: i + 1, Text: line})
			}
		}
	}
	return matches, nil
}

func (b *StateBackend) Execute(ctx context.Context, command string) (ExecResult, error) {
	return ExecResult{}, ErrExecuteNotSupported
}

func (b *StateBackend) SupportsExecute() bool { return false }

// formatNumberedLines implements the read() operation's "N→<line>"
// formatting (§4.1), 1-indexed starting at offset+1.
func formatNumberedLines(lines []string, offset, limit int) string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		return ""
	}
	end := len(lines)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	var b strings.Builder
	for i := offset; i < end; i++ {
		fmt.Fprintf(&b, "%d→%s\n", i+1, lines[i])
	}
	return b.String()
}

// relativeTo returns p relative to cwd (both canonical absolute paths),
// or "" if p is not under cwd. The empty leading "/" is stripped per
// §4.1's "relative-path semantics; leading / in stored paths does not
// match unrooted patterns" — globs are matched against this relative
// form, never the absolute stored path.
func relativeTo(p, cwd string) string {
	if cwd == "/" {
		return strings.TrimPrefix(p, "/")
	}
	prefix := cwd + "/"
	if !strings.HasPrefix(p, prefix) {
		return ""
	}
	return strings.TrimPrefix(p, prefix)
}

// globToRegexp compiles a glob pattern (*, **, ?) into an anchored
// regexp. "**" matches any depth including "/"; a single "*" matches
// within one path segment only; "?" matches exactly one non-separator
// rune. No example repo in the corpus contributes a glob-matching
// library (no bmatcuk/doublestar or similar appears in any go.mod), so
// this is a small stdlib-only translator rather than a dropped
// dependency.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
