// Package checkpoint: SQLite backing store. Grounded on store/sqlite.go's
// New/Init/WithLogger shape (single shared connection, SetMaxOpenConns(1)
// to serialize writers and avoid SQLITE_BUSY) adapted from the teacher's
// multi-entity schema down to the checkpointer's single namespaced table.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store backed by a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStoreOption configures a SQLiteStore.
type SQLiteStoreOption func(*SQLiteStore)

// WithSQLiteLogger sets a structured logger; Init and Save log their start
// and outcome, including timing. Other operations do not log. If unset, no
// logs are emitted.
func WithSQLiteLogger(l *slog.Logger) SQLiteStoreOption {
	return func(s *SQLiteStore) { s.logger = l }
}

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// NewSQLiteStore opens (but does not yet initialize) a SQLite-backed
// store at dbPath.
func NewSQLiteStore(dbPath string, opts ...SQLiteStoreOption) *SQLiteStore {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; the
		// blank import above guarantees it is.
		panic(fmt.Sprintf("checkpoint/sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the checkpoints table.
func (s *SQLiteStore) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("checkpoint/sqlite: init started")
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS checkpoints (
		namespace TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		messages TEXT NOT NULL,
		state TEXT NOT NULL,
		interrupt TEXT,
		metadata TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (namespace, thread_id)
	)`)
	if err != nil {
		s.logger.Error("checkpoint/sqlite: init failed", "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("checkpoint/sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts cp, preserving the original created_at on update.
func (s *SQLiteStore) Save(ctx context.Context, namespace string, cp Checkpoint) error {
	start := time.Now()
	s.logger.Debug("checkpoint/sqlite: save", "namespace", namespace, "thread_id", cp.ThreadID, "step", cp.Step)

	messagesJSON, err := json.Marshal(cp.Messages)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: marshal messages: %w", err)
	}
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: marshal state: %w", err)
	}
	var interruptJSON []byte
	if cp.Interrupt != nil {
		interruptJSON, err = json.Marshal(cp.Interrupt)
		if err != nil {
			return fmt.Errorf("checkpoint/sqlite: marshal interrupt: %w", err)
		}
	}
	metadataJSON, err := json.Marshal(cp.Metadata)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: marshal metadata: %w", err)
	}

	existingCreatedAt := cp.CreatedAt
	row := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM checkpoints WHERE namespace=? AND thread_id=?`, namespace, cp.ThreadID)
	var prevCreatedAt string
	if err := row.Scan(&prevCreatedAt); err == nil {
		existingCreatedAt = prevCreatedAt
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (namespace, thread_id, step, messages, state, interrupt, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, thread_id) DO UPDATE SET
			step=excluded.step, messages=excluded.messages, state=excluded.state,
			interrupt=excluded.interrupt, metadata=excluded.metadata, updated_at=excluded.updated_at`,
		namespace, cp.ThreadID, cp.Step, string(messagesJSON), string(stateJSON),
		nullableString(interruptJSON), string(metadataJSON), existingCreatedAt, cp.UpdatedAt)
	if err != nil {
		s.logger.Error("checkpoint/sqlite: save failed", "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Debug("checkpoint/sqlite: save completed", "duration", time.Since(start))
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Load reads the stored checkpoint for threadID.
func (s *SQLiteStore) Load(ctx context.Context, namespace, threadID string) (Checkpoint, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step, messages, state, interrupt, metadata, created_at, updated_at
		 FROM checkpoints WHERE namespace=? AND thread_id=?`, namespace, threadID)

	var step int
	var messagesJSON, stateJSON, metadataJSON, createdAt, updatedAt string
	var interruptJSON sql.NullString
	if err := row.Scan(&step, &messagesJSON, &stateJSON, &interruptJSON, &metadataJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("checkpoint/sqlite: scan: %w", err)
	}

	cp, err := decodeCheckpoint(threadID, step, messagesJSON, stateJSON, interruptJSON.String, metadataJSON, createdAt, updatedAt)
	if err != nil {
		return Checkpoint{}, false, &ErrInvalidCheckpoint{Namespace: namespace, ThreadID: threadID, Err: err}
	}
	return cp, true, nil
}

func decodeCheckpoint(threadID string, step int, messagesJSON, stateJSON, interruptJSON, metadataJSON, createdAt, updatedAt string) (Checkpoint, error) {
	cp := Checkpoint{ThreadID: threadID, Step: step, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if err := json.Unmarshal([]byte(messagesJSON), &cp.Messages); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal messages: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if interruptJSON != "" {
		if err := json.Unmarshal([]byte(interruptJSON), &cp.Interrupt); err != nil {
			return Checkpoint{}, fmt.Errorf("unmarshal interrupt: %w", err)
		}
	}
	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &cp.Metadata); err != nil {
			return Checkpoint{}, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return cp, nil
}

// Exists reports whether a checkpoint for threadID is stored.
func (s *SQLiteStore) Exists(ctx context.Context, namespace, threadID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM checkpoints WHERE namespace=? AND thread_id=?`, namespace, threadID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the checkpoint for threadID, if any.
func (s *SQLiteStore) Delete(ctx context.Context, namespace, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE namespace=? AND thread_id=?`, namespace, threadID)
	return err
}

// List returns every threadID with a stored checkpoint in namespace.
func (s *SQLiteStore) List(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints WHERE namespace=? ORDER BY thread_id`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
