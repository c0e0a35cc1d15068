package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AnnotationStore = (*AnnotationStore)(nil)

// AnnotationStore implements driven.AnnotationStore using PostgreSQL.
// Position and regions are stored as JSONB.
type AnnotationStore struct {
	db *DB
}

// NewAnnotationStore creates a new AnnotationStore
func NewAnnotationStore(db *DB) *AnnotationStore {
	return &AnnotationStore{db: db}
}

const annotationColumns = `id, session_id, page_number, kind, content, highlighted_text, position, regions, author_id, created_at`

// Create inserts a new annotation. A missing session yields domain.ErrNotFound.
func (s *AnnotationStore) Create(ctx context.Context, a *domain.Annotation) error {
	var position, regions []byte
	var err error
	if a.Position != nil {
		if position, err = json.Marshal(a.Position); err != nil {
			return fmt.Errorf("marshal position: %w", err)
		}
	}
	if len(a.Regions) > 0 {
		if regions, err = json.Marshal(a.Regions); err != nil {
			return fmt.Errorf("marshal regions: %w", err)
		}
	}

	query := `
		INSERT INTO annotations (` + annotationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		a.ID,
		a.SessionID,
		NullInt(a.PageNumber),
		string(a.Kind),
		a.Content,
		NullString(a.HighlightedText),
		position,
		regions,
		a.AuthorID,
		a.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return domain.ErrNotFound
	}
	return err
}

// Get retrieves an annotation by ID
func (s *AnnotationStore) Get(ctx context.Context, id string) (*domain.Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE id = $1`

	a, err := scanAnnotation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListBySession retrieves all annotations for a session, oldest first
func (s *AnnotationStore) ListBySession(ctx context.Context, sessionID string) ([]*domain.Annotation, error) {
	query := `
		SELECT ` + annotationColumns + `
		FROM annotations
		WHERE session_id = $1
		ORDER BY created_at, id
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	annotations := make([]*domain.Annotation, 0)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}

	return annotations, rows.Err()
}

// Delete deletes an annotation
func (s *AnnotationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*domain.Annotation, error) {
	var (
		a               domain.Annotation
		kind            string
		pageNumber      sql.NullInt64
		highlightedText sql.NullString
		position        []byte
		regions         []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.SessionID,
		&pageNumber,
		&kind,
		&a.Content,
		&highlightedText,
		&position,
		&regions,
		&a.AuthorID,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}

	a.Kind = domain.AnnotationKind(kind)
	a.PageNumber = IntPtr(pageNumber)
	a.HighlightedText = highlightedText.String
	if len(position) > 0 {
		a.Position = &domain.Point{}
		if err := json.Unmarshal(position, a.Position); err != nil {
			return nil, fmt.Errorf("annotation %s: position: %w", a.ID, err)
		}
	}
	if len(regions) > 0 {
		if err := json.Unmarshal(regions, &a.Regions); err != nil {
			return nil, fmt.Errorf("annotation %s: regions: %w", a.ID, err)
		}
	}
	return &a, nil
}
