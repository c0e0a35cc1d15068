package postgres

import (
	"context"
	"database/sql"

	"github.com/scriptroom/feedback-core/internal/core/domain"
	"github.com/scriptroom/feedback-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SessionStore = (*SessionStore)(nil)

// SessionStore implements driven.SessionStore using PostgreSQL
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save stores a session
func (s *SessionStore) Save(ctx context.Context, session *domain.FeedbackSession) error {
	query := `
		INSERT INTO feedback_sessions (id, document_url, title, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			document_url = EXCLUDED.document_url,
			title = EXCLUDED.title
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.DocumentURL,
		session.Title,
		session.OwnerID,
		session.CreatedAt,
	)
	return err
}

// Get retrieves a session by ID
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.FeedbackSession, error) {
	query := `
		SELECT id, document_url, title, owner_id, created_at
		FROM feedback_sessions
		WHERE id = $1
	`

	var session domain.FeedbackSession
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.DocumentURL,
		&session.Title,
		&session.OwnerID,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// ListByOwner retrieves all sessions opened by a user, newest first
func (s *SessionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.FeedbackSession, error) {
	query := `
		SELECT id, document_url, title, owner_id, created_at
		FROM feedback_sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*domain.FeedbackSession, 0)
	for rows.Next() {
		var session domain.FeedbackSession
		if err := rows.Scan(
			&session.ID,
			&session.DocumentURL,
			&session.Title,
			&session.OwnerID,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}
