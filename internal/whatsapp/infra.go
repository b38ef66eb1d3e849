package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

const conversationColumns = `id, phone_number, mode, status, last_message_at, created_at`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var (
		c    Conversation
		mode string
	)
	if err := row.Scan(&c.ID, &c.PhoneNumber, &mode, &c.Status, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Mode = Mode(mode)
	return &c, nil
}

func (r *repo) MessageExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE external_message_id = $1)
	`, externalID).Scan(&exists)
	return exists, err
}

// GetOrCreateConversation is a single upsert so concurrent first messages
// from one number cannot create two rows.
func (r *repo) GetOrCreateConversation(ctx context.Context, phone string) (*Conversation, error) {
	return scanConversation(r.db.QueryRowContext(ctx, `
		INSERT INTO conversations (phone_number, mode, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone_number) DO UPDATE SET phone_number = EXCLUDED.phone_number
		RETURNING `+conversationColumns,
		phone, string(ModeAI), StatusActive,
	))
}

func (r *repo) GetConversation(ctx context.Context, phone string) (*Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE phone_number = $1
	`, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	return c, err
}

func (r *repo) EnsureCustomer(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (phone) VALUES ($1)
		ON CONFLICT (phone) DO NOTHING
	`, phone)
	return err
}

// SaveMessage relies on the unique external_message_id constraint; the
// MessageExists pre-check only saves work.
func (r *repo) SaveMessage(ctx context.Context, msg *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	return tx.Commit()
}

// Handoff commits the mode swap and the system message together, or neither.
func (r *repo) Handoff(ctx context.Context, phone string, sys *Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE conversations SET mode = $3 WHERE phone_number = $1 AND mode = $2
	`, phone, string(ModeAI), string(ModeOperator))
	if err != nil {
		return false, fmt.Errorf("swap mode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	if err := insertMessage(ctx, tx, sys); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, msg *Message) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO messages (phone_number, sender, content, external_message_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_message_id) DO NOTHING
		RETURNING id, created_at
	`,
		msg.PhoneNumber,
		string(msg.Sender),
		msg.Text,
		msg.ExternalID,
	).Scan(&msg.ID, &msg.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicateMessage
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateMessage
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = $2 WHERE phone_number = $1
	`, msg.PhoneNumber, msg.CreatedAt); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *repo) SetMode(ctx context.Context, phone string, mode Mode) (*Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		UPDATE conversations SET mode = $2 WHERE phone_number = $1
		RETURNING `+conversationColumns,
		phone, string(mode),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	return c, err
}

func (r *repo) GetHistory(ctx context.Context, phone string, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, phone_number, sender, content, external_message_id, created_at
		FROM (
			SELECT * FROM messages
			WHERE phone_number = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m          Message
			sender     string
			externalID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.PhoneNumber, &sender, &m.Text, &externalID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		if externalID.Valid {
			m.ExternalID = &externalID.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repo) ListConversations(ctx context.Context) (Conversations, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.phone_number, c.mode, c.status,
		       cu.id IS NOT NULL, COALESCE(cu.name, ''), COALESCE(cu.email, ''), COALESCE(cu.notes, '')
		FROM conversations c
		LEFT JOIN customers cu ON cu.phone = c.phone_number
		ORDER BY c.last_message_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Conversations{}
	index := map[string]int{}
	var phones []string
	for rows.Next() {
		var (
			v           ConversationView
			mode        string
			hasCustomer bool
			cs          CustomerSummary
		)
		if err := rows.Scan(&v.PhoneNumber, &mode, &v.Status, &hasCustomer, &cs.Name, &cs.Email, &cs.Notes); err != nil {
			return nil, err
		}
		v.Mode = Mode(mode)
		v.Messages = []WireMessage{}
		if hasCustomer {
			v.Customer = &cs
		}
		index[v.PhoneNumber] = len(out)
		phones = append(phones, v.PhoneNumber)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(phones) == 0 {
		return out, nil
	}

	msgRows, err := r.db.QueryContext(ctx, `
		SELECT phone_number, sender, content, created_at
		FROM messages
		WHERE phone_number = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, pq.Array(phones))
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			phone, sender string
			m             Message
		)
		if err := msgRows.Scan(&phone, &sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Sender = Sender(sender)
		i := index[phone]
		out[i].Messages = append(out[i].Messages, toWire(&m))
	}
	return out, msgRows.Err()
}
