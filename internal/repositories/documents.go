package repositories

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fanx/internal/models"
	"github.com/desertthunder/fanx/internal/shared"
)

// DocumentRepository stores published documents in SQLite. It implements the
// document sink used by the pipeline.
//
// Revisions follow the CouchDB "<generation>-<digest>" shape, so a put must
// carry the current revision of an existing document.
type DocumentRepository struct {
	db *sql.DB
}

// NewDocumentRepository creates a new DocumentRepository with the given database connection
func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Name() string {
	return "sqlite"
}

// Revision returns the stored revision of id, or "" if there is none.
func (r *DocumentRepository) Revision(ctx context.Context, id string) (string, error) {
	var rev string
	err := r.db.QueryRowContext(ctx, "SELECT rev FROM documents WHERE id = ?", id).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get document revision: %w", err)
	}
	return rev, nil
}

// Put creates or replaces doc. Replacing requires doc.Rev to match the stored
// revision; a mismatch returns [shared.ErrConflict].
func (r *DocumentRepository) Put(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id", shared.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT rev FROM documents WHERE id = ?", doc.ID).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to get document revision: %w", err)
	}
	if exists && doc.Rev != current {
		return fmt.Errorf("%w: %s has rev %s, got %q", shared.ErrConflict, doc.ID, current, doc.Rev)
	}
	if !exists && doc.Rev != "" {
		return fmt.Errorf("%w: %s does not exist, got rev %q", shared.ErrConflict, doc.ID, doc.Rev)
	}

	stored := *doc
	stored.Rev = ""
	body, err := shared.MarshalJSON(stored, false)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	rev := nextRevision(current, body)

	query := `
		INSERT INTO documents (id, rev, type, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rev = excluded.rev, type = excluded.type, body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, doc.ID, rev, doc.Type, string(body), time.Now()); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}

// Get retrieves a stored document with its current revision.
func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	var rev, body string
	err := r.db.QueryRowContext(ctx, "SELECT rev, body FROM documents WHERE id = ?", id).Scan(&rev, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc.Rev = rev
	return &doc, nil
}

// List returns the stored document ids, optionally limited to a prefix.
func (r *DocumentRepository) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM documents WHERE id LIKE ? ORDER BY id", prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// nextRevision bumps the generation of current and appends a digest of body.
func nextRevision(current string, body []byte) string {
	generation := 0
	if prefix, _, ok := strings.Cut(current, "-"); ok {
		generation, _ = strconv.Atoi(prefix)
	}
	sum := sha256.Sum256(body)
	return strconv.Itoa(generation+1) + "-" + hex.EncodeToString(sum[:16])
}
