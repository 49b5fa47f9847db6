// Package checkpoint: PostgreSQL backing store. Grounded on
// store/postgres/postgres.go's externally-owned-pgxpool.Pool constructor
// injection, JSONB metadata columns, and $N-placeholder query style,
// narrowed from the teacher's multi-entity schema to the checkpointer's
// single namespaced table.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store backed by PostgreSQL. The caller owns
// pool and is responsible for closing it; Close here is a no-op so
// multiple Checkpointer namespaces can share one pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a PostgresStore using an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Init creates the checkpoints table.
func (s *PostgresStore) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS checkpoints (
		namespace TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		messages JSONB NOT NULL,
		state JSONB NOT NULL,
		interrupt JSONB,
		metadata JSONB,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, thread_id)
	)`)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: init: %w", err)
	}
	return nil
}

// Close is a no-op; the caller owns the pool.
func (s *PostgresStore) Close() error { return nil }

// Save upserts cp, preserving the original created_at on update.
func (s *PostgresStore) Save(ctx context.Context, namespace string, cp Checkpoint) error {
	messagesJSON, err := json.Marshal(cp.Messages)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: marshal messages: %w", err)
	}
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: marshal state: %w", err)
	}
	var interruptJSON []byte
	if cp.Interrupt != nil {
		interruptJSON, err = json.Marshal(cp.Interrupt)
		if err != nil {
			return fmt.Errorf("checkpoint/postgres: marshal interrupt: %w", err)
		}
	}
	metadataJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: marshal metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkpoints (namespace, thread_id, step, messages, state, interrupt, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, $7::jsonb, $8, $9)
		 ON CONFLICT (namespace, thread_id) DO UPDATE SET
			step = excluded.step, messages = excluded.messages, state = excluded.state,
			interrupt = excluded.interrupt, metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		namespace, cp.ThreadID, cp.Step, messagesJSON, stateJSON, nullableBytes(interruptJSON), metadataJSON, cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: save: %w", err)
	}
	return nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Load reads the stored checkpoint for threadID.
func (s *PostgresStore) Load(ctx context.Context, namespace, threadID string) (Checkpoint, bool, error) {
	var step int
	var messagesJSON, stateJSON, metadataJSON []byte
	var interruptJSON []byte
	var createdAt, updatedAt string

	err := s.pool.QueryRow(ctx,
		`SELECT step, messages, state, interrupt, metadata, created_at, updated_at
		 FROM checkpoints WHERE namespace=$1 AND thread_id=$2`, namespace, threadID,
	).Scan(&step, &messagesJSON, &stateJSON, &interruptJSON, &metadataJSON, &createdAt, &updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("checkpoint/postgres: load: %w", err)
	}

	cp := Checkpoint{ThreadID: threadID, Step: step, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if err := json.Unmarshal(messagesJSON, &cp.Messages); err != nil {
		return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
	}
	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
	}
	if len(interruptJSON) > 0 {
		if err := json.Unmarshal(interruptJSON, &cp.Interrupt); err != nil {
			return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
		}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &cp.Metadata); err != nil {
			return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
		}
	}
	return cp, true, nil
}

// Exists reports whether a checkpoint for threadID is stored.
func (s *PostgresStore) Exists(ctx context.Context, namespace, threadID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM checkpoints WHERE namespace=$1 AND thread_id=$2`, namespace, threadID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checkpoint/postgres: exists: %w", err)
	}
	return true, nil
}

// Delete removes the checkpoint for threadID, if any.
func (s *PostgresStore) Delete(ctx context.Context, namespace, threadID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM checkpoints WHERE namespace=$1 AND thread_id=$2`, namespace, threadID)
	if err != nil {
		return fmt.Errorf("checkpoint/postgres: delete: %w", err)
	}
	return nil
}

// List returns every threadID with a stored checkpoint in namespace.
func (s *PostgresStore) List(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT thread_id FROM checkpoints WHERE namespace=$1 ORDER BY thread_id`, namespace)
	if err != nil {
		return nil, fmt.Errorf("checkpoint/postgres: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("checkpoint/postgres: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
