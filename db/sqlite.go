// Package db stores model artifacts in SQLite so a model can be bundled
// with the service instead of shipped as a loose file.
package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrArtifactNotFound is returned when no artifact has the requested name.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact is one stored model payload.
type Artifact struct {
	ID        int64
	Name      string
	ModelType string
	Payload   []byte
	Checksum  string
	CreatedAt time.Time
}

// ArtifactStore keeps model artifacts by name. Saving the same payload
// twice under one name is a no-op; Latest returns the newest payload.
type ArtifactStore struct {
	db   *sql.DB
	path string
}

// OpenArtifactStore opens or creates the database at path.
func OpenArtifactStore(path string) (*ArtifactStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	query := `
    CREATE TABLE IF NOT EXISTS model_artifacts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        model_type TEXT NOT NULL,
        payload BLOB NOT NULL,
        checksum TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE(name, checksum)
    );
    CREATE INDEX IF NOT EXISTS idx_model_artifacts_name ON model_artifacts(name, id);`

	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &ArtifactStore{db: database, path: path}, nil
}

// Path returns the database file path.
func (s *ArtifactStore) Path() string {
	return s.path
}

// Save stores payload under name and returns the stored record.
func (s *ArtifactStore) Save(ctx context.Context, name, modelType string, payload []byte) (*Artifact, error) {
	if name == "" {
		return nil, errors.New("artifact name is required")
	}
	if len(payload) == 0 {
		return nil, errors.New("artifact payload is empty")
	}
	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO model_artifacts (name, model_type, payload, checksum, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		name, modelType, payload, checksum, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("save artifact %s: %w", name, err)
	}
	return s.scanOne(ctx,
		`SELECT id, name, model_type, payload, checksum, created_at
         FROM model_artifacts WHERE name = ? AND checksum = ?`,
		name, checksum,
	)
}

// Latest returns the most recently saved artifact for name.
func (s *ArtifactStore) Latest(ctx context.Context, name string) (*Artifact, error) {
	a, err := s.scanOne(ctx,
		`SELECT id, name, model_type, payload, checksum, created_at
         FROM model_artifacts WHERE name = ? ORDER BY id DESC LIMIT 1`,
		name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return a, err
}

// List returns the newest artifact of every name, without payloads.
func (s *ArtifactStore) List(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, model_type, checksum, created_at
        FROM model_artifacts
        WHERE id IN (SELECT MAX(id) FROM model_artifacts GROUP BY name)
        ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Name, &a.ModelType, &a.Checksum, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *ArtifactStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *ArtifactStore) scanOne(ctx context.Context, query string, args ...any) (*Artifact, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.Name, &a.ModelType, &a.Payload, &a.Checksum, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
