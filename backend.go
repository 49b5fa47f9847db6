package agentrt

import (
	"context"
	"errors"
	"fmt"
)

// ErrExecuteNotSupported is returned by Backend.Execute when the backend
// has no shell capability (§4.1: "the capability to execute shell
// commands is detected structurally; absent capability disables the
// bash tool").
var ErrExecuteNotSupported = errors.New("agentrt: backend does not support execute")

// WriteResult is the outcome of Backend.Write (§4.1).
type WriteResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// EntryInfo is one row of Backend.LsInfo's deep listing.
type EntryInfo struct {
	Path       string `json:"path"`
	IsDir      bool   `json:"is_dir"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// GrepMatch is one row of Backend.GrepRaw's result, 1-indexed by line.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// ExecResult is the outcome of Backend.Execute.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// Backend exposes the contract used by the filesystem tools and by
// read_file citations (§4.1). A backend may be pure state-backed (all
// data in a State) or host-filesystem-backed (rooted at a directory,
// optionally with shell execution); the capability to execute is
// detected structurally via SupportsExecute, not by a type assertion, so
// callers can decide whether to register the bash tool without importing
// a concrete backend type.
type Backend interface {
	// Write canonicalises path, splits content on newline, creates
	// parent directories virtually, preserves created_at on overwrite,
	// and bumps modified_at.
	Write(ctx context.Context, path, content string) (WriteResult, error)
	// Read returns lines formatted as "N→<line>" beginning at offset+1.
	// limit<=0 means no limit. Fails with "File not found" if path is
	// absent.
	Read(ctx context.Context, path string, offset, limit int) (string, error)
	// ReadRaw returns a deep copy of the stored record.
	ReadRaw(ctx context.Context, path string) (FileRecord, error)
	// Edit performs an exact string find/replace. Fails if the file is
	// missing, find has zero matches, or find has more than one match
	// and replaceAll is false.
	Edit(ctx context.Context, path, find, replace string, replaceAll bool) error
	// LsInfo returns a deep listing of dir.
	LsInfo(ctx context.Context, dir string) ([]EntryInfo, error)
	// GlobInfo matches pattern (supporting *, **, ?) against stored
	// relative paths under cwd.
	GlobInfo(ctx context.Context, pattern, cwd string) ([]string, error)
	// GrepRaw returns every match of regex, optionally scoped to path
	// and/or filtered by includeGlob, sorted by path then line.
	GrepRaw(ctx context.Context, regex, path, includeGlob string) ([]GrepMatch, error)
	// Execute runs command and returns its exit code and combined
	// output, or ErrExecuteNotSupported if SupportsExecute is false, or
	// *CommandBlockedError if command matches a blocked pattern.
	Execute(ctx context.Context, command string) (ExecResult, error)
	// SupportsExecute reports whether Execute is backed by a real shell.
	SupportsExecute() bool
}

func fileNotFoundError(path string) error {
	return fmt.Errorf("File not found: %s", path)
}
