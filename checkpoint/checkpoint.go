// Package checkpoint implements the §4.9 checkpointer: namespaced
// save/load/exists/delete/list of per-thread snapshots through a
// pluggable backing store. Grounded on store.go's Store interface shape
// (per-entity CRUD plus Init/Close), generalized to a single namespaced
// checkpoint table — the checkpointer has only one entity kind
// (Checkpoint), not the teacher's thread/message/document/skill spread.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/corestrand/agentrt"
)

// Checkpoint K (§3) is a serialisable snapshot of a thread's progress.
// threadId and CreatedAt are immutable after the first save.
type Checkpoint struct {
	ThreadID  string                        `json:"thread_id"`
	Step      int                           `json:"step"`
	Messages  []agentrt.ChatMessage         `json:"messages"`
	State     *agentrt.State                `json:"state"`
	Interrupt *agentrt.InterruptDescriptor  `json:"interrupt,omitempty"`
	Metadata  map[string]any                `json:"metadata,omitempty"`
	CreatedAt string                        `json:"created_at"`
	UpdatedAt string                        `json:"updated_at"`
}

// CloneDeep returns an independent copy of c, used on both the save and
// load paths so a caller can never observe (or corrupt) the store's
// internal copy by mutating the value they were handed (§4.9).
func (c Checkpoint) CloneDeep() Checkpoint {
	out := c
	out.Messages = append([]agentrt.ChatMessage(nil), c.Messages...)
	if c.State != nil {
		out.State = c.State.CloneDeep()
	}
	if c.Interrupt != nil {
		cp := *c.Interrupt
		out.Interrupt = &cp
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Store is the pluggable backing-store interface every checkpointer
// backend implements (§4.9): save/load/exists/delete/list, all namespaced
// so multi-tenant usage isolates by key prefix.
type Store interface {
	Save(ctx context.Context, namespace string, cp Checkpoint) error
	Load(ctx context.Context, namespace, threadID string) (Checkpoint, bool, error)
	Exists(ctx context.Context, namespace, threadID string) (bool, error)
	Delete(ctx context.Context, namespace, threadID string) error
	List(ctx context.Context, namespace string) ([]string, error)

	Init(ctx context.Context) error
	Close() error
}

// ErrInvalidCheckpoint is returned when a load finds a structurally
// invalid stored value; a missing checkpoint is reported as (zero value,
// false, nil), never as an error (§4.9, §8: "invalid structures are
// rejected ... on load").
type ErrInvalidCheckpoint struct {
	Namespace, ThreadID string
	Err                 error
}

func (e *ErrInvalidCheckpoint) Error() string {
	return fmt.Sprintf("checkpoint: invalid checkpoint %s/%s: %v", e.Namespace, e.ThreadID, e.Err)
}

func (e *ErrInvalidCheckpoint) Unwrap() error { return e.Err }

// Checkpointer is the thin, namespace-bound façade callers use (§4.9);
// it owns no state of its own beyond the namespace and delegates every
// operation to store, deep-copying on both sides of the boundary.
type Checkpointer struct {
	store     Store
	namespace string
}

// New returns a Checkpointer bound to namespace, delegating to store.
func New(store Store, namespace string) *Checkpointer {
	return &Checkpointer{store: store, namespace: namespace}
}

// Init prepares the backing store (creating tables/files/directories as
// needed). Must be called once before Save/Load/etc.
func (c *Checkpointer) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Close releases the backing store's resources.
func (c *Checkpointer) Close() error {
	return c.store.Close()
}

// Save deep-copies cp and persists it under c.namespace. updatedAt is the
// caller's responsibility to bump; concurrent saves on the same threadID
// are last-writer-wins by UpdatedAt (§4.9).
func (c *Checkpointer) Save(ctx context.Context, cp Checkpoint) error {
	return c.store.Save(ctx, c.namespace, cp.CloneDeep())
}

// Load returns a deep copy of the stored checkpoint for threadID, or
// (zero value, false, nil) if none exists.
func (c *Checkpointer) Load(ctx context.Context, threadID string) (Checkpoint, bool, error) {
	cp, ok, err := c.store.Load(ctx, c.namespace, threadID)
	if err != nil || !ok {
		return Checkpoint{}, ok, err
	}
	return cp.CloneDeep(), true, nil
}

// Exists reports whether a checkpoint for threadID is stored.
func (c *Checkpointer) Exists(ctx context.Context, threadID string) (bool, error) {
	return c.store.Exists(ctx, c.namespace, threadID)
}

// Delete removes the checkpoint for threadID, if any.
func (c *Checkpointer) Delete(ctx context.Context, threadID string) error {
	return c.store.Delete(ctx, c.namespace, threadID)
}

// List returns every threadID with a stored checkpoint in c.namespace.
func (c *Checkpointer) List(ctx context.Context) ([]string, error) {
	return c.store.List(ctx, c.namespace)
}
