package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const contactColumns = `id, name, email, phone, message, status, created_at, archived_at, deleted_at`

func (s *PostgresStore) InsertContactMessage(ctx context.Context, msg ContactMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, phone, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.Name, msg.Email, msg.Phone, msg.Message, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// ListContactMessages returns messages newest first. An empty status lists every
// message, tombstones included.
func (s *PostgresStore) ListContactMessages(ctx context.Context, status string) ([]ContactMessage, error) {
	query := `SELECT ` + contactColumns + ` FROM contact_messages`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	defer rows.Close()

	items := make([]ContactMessage, 0)
	for rows.Next() {
		msg, err := scanContactMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetContactMessage(ctx context.Context, id string) (ContactMessage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contact_messages WHERE id = $1`, id)
	msg, err := scanContactMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ContactMessage{}, ErrNotFound
	}
	return msg, err
}

// UpdateContactMessageStatus sets status and stamps archived_at or deleted_at with at
// when the message enters that status.
func (s *PostgresStore) UpdateContactMessageStatus(ctx context.Context, id, status string, at time.Time) (ContactMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE contact_messages
		SET status = $2::text,
		    archived_at = CASE WHEN $2::text = 'archived' THEN $3::timestamptz ELSE archived_at END,
		    deleted_at = CASE WHEN $2::text = 'deleted' THEN $3::timestamptz ELSE deleted_at END
		WHERE id = $1
		RETURNING `+contactColumns, id, status, at)
	msg, err := scanContactMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ContactMessage{}, ErrNotFound
	}
	return msg, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContactMessage(row rowScanner) (ContactMessage, error) {
	var (
		msg        ContactMessage
		phone      sql.NullString
		archivedAt sql.NullTime
		deletedAt  sql.NullTime
	)
	if err := row.Scan(&msg.ID, &msg.Name, &msg.Email, &phone, &msg.Message, &msg.Status, &msg.CreatedAt, &archivedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ContactMessage{}, err
		}
		return ContactMessage{}, fmt.Errorf("scan contact message: %w", err)
	}
	if phone.Valid {
		msg.Phone = &phone.String
	}
	if archivedAt.Valid {
		t := archivedAt.Time
		msg.ArchivedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		msg.DeletedAt = &t
	}
	return msg, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
