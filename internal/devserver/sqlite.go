package devserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/maquette-dev/maquette/internal/artifact"
	"github.com/maquette-dev/maquette/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL DEFAULT '',
	spec TEXT NOT NULL DEFAULT '',
	phase TEXT NOT NULL DEFAULT 'spec',
	content TEXT NOT NULL DEFAULT '{}',
	history TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_artifacts_user ON artifacts(user_id, status);
`

// DB is the dev server's sqlite-backed artifact store.
type DB struct {
	db *sql.DB
}

// OpenDB opens (and creates) the database at path. ":memory:" works for
// tests.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error {
	return d.db.Close()
}

const artifactColumns = "id, user_id, title, description, prompt, spec, phase, content, history, status, created_at, updated_at"

// List returns the user's non-deleted artifacts, most recently updated
// first.
func (d *DB) List(ctx context.Context, userID string) ([]artifact.Artifact, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE user_id = ? AND status != ? ORDER BY updated_at DESC",
		userID, string(artifact.StatusDeleted),
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	out := []artifact.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return out, nil
}

// Get returns one artifact scoped by user. A foreign or missing id is
// artifact.ErrNotFound either way.
func (d *DB) Get(ctx context.Context, userID, id string) (*artifact.Artifact, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT "+artifactColumns+" FROM artifacts WHERE id = ? AND user_id = ?",
		id, userID,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new artifact, assigning id and timestamps.
func (d *DB) Create(ctx context.Context, a *artifact.Artifact) (*artifact.Artifact, error) {
	stored := a.Clone()
	stored.ID = uuid.NewString()
	if stored.Status == "" {
		stored.Status = artifact.StatusDraft
	}
	stored.Phase = stored.EffectivePhase()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	content, history, err := marshalFields(stored)
	if err != nil {
		return nil, err
	}

	_, err = d.db.ExecContext(ctx,
		"INSERT INTO artifacts ("+artifactColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		stored.ID, stored.UserID, stored.Title, stored.Description, stored.Prompt,
		stored.Spec, string(stored.Phase), content, history, string(stored.Status),
		stored.CreatedAt, stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return stored, nil
}

// Update applies a partial update and returns the stored form. Last writer
// wins per field present in the request.
func (d *DB) Update(ctx context.Context, userID, id string, req store.UpdateRequest) (*artifact.Artifact, error) {
	a, err := d.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		a.Title = *req.Title
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Spec != nil {
		a.Spec = *req.Spec
	}
	if req.Phase != nil {
		a.Phase = *req.Phase
	}
	if req.Content != nil {
		a.Content = *req.Content
	}
	if req.ConversationHistory != nil {
		a.History = req.ConversationHistory
	}
	if req.Status != nil {
		if !artifact.ValidStatus(*req.Status) {
			return nil, fmt.Errorf("invalid status %q", *req.Status)
		}
		a.Status = *req.Status
	}
	a.UpdatedAt = time.Now().UTC()

	content, history, err := marshalFields(a)
	if err != nil {
		return nil, err
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE artifacts SET title = ?, description = ?, spec = ?, phase = ?,
		 content = ?, history = ?, status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		a.Title, a.Description, a.Spec, string(a.EffectivePhase()),
		content, history, string(a.Status), a.UpdatedAt, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, artifact.ErrNotFound
	}
	return a, nil
}

// Delete soft-deletes: the row stays with status deleted.
func (d *DB) Delete(ctx context.Context, userID, id string) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE artifacts SET status = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		string(artifact.StatusDeleted), time.Now().UTC(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if n == 0 {
		return artifact.ErrNotFound
	}
	return nil
}

func marshalFields(a *artifact.Artifact) (content, history string, err error) {
	c, err := json.Marshal(a.Content)
	if err != nil {
		return "", "", fmt.Errorf("marshal content: %w", err)
	}
	h, err := json.Marshal(a.History)
	if err != nil {
		return "", "", fmt.Errorf("marshal history: %w", err)
	}
	return string(c), string(h), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var phase, status, content, history string
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.Prompt,
		&a.Spec, &phase, &content, &history, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.Phase = artifact.Phase(phase)
	a.Status = artifact.Status(status)
	if err := json.Unmarshal([]byte(content), &a.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &a.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &a, nil
}
