package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/internal/platform/uow"
)

// Repository persists chats and messages within one unit of work.
type Repository struct {
	q uow.Querier
}

// NewRepository constructs a Repository.
func NewRepository(q uow.Querier) *Repository {
	return &Repository{q: q}
}

func scanChat(row pgx.Row) (*Chat, error) {
	var c Chat
	if err := row.Scan(&c.ID, &c.Title, &c.OwnerID, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m   Message
		raw []byte
	)
	if err := row.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &raw, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	m.Sources = []Source{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.Sources); err != nil {
			return Message{}, fmt.Errorf("chat: decode sources: %w", err)
		}
	}
	return m, nil
}

// CreateChat inserts a chat owned by ownerID.
func (r *Repository) CreateChat(ctx context.Context, ownerID uuid.UUID, title string) (*Chat, error) {
	const query = `
		INSERT INTO chats (id, title, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, title, owner_id, created_at`
	c, err := scanChat(r.q.QueryRow(ctx, query, uuid.New(), title, ownerID))
	if err != nil {
		return nil, fmt.Errorf("chat: create: %w", err)
	}
	return c, nil
}

// GetChat returns the chat without messages, or nil when absent.
func (r *Repository) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	c, err := scanChat(r.q.QueryRow(ctx, `SELECT id, title, owner_id, created_at FROM chats WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("chat: get: %w", err)
	}
	return c, nil
}

// GetUserChats lists chats owned by ownerID, newest first.
func (r *Repository) GetUserChats(ctx context.Context, ownerID uuid.UUID) ([]Chat, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, title, owner_id, created_at
		FROM chats
		WHERE owner_id = $1
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("chat: list: %w", err)
	}
	chats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Chat, error) {
		c, err := scanChat(row)
		if err != nil {
			return Chat{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: list: %w", err)
	}
	return chats, nil
}

// GetChatWithMessages returns the chat and its messages in creation order,
// or nil when absent.
func (r *Repository) GetChatWithMessages(ctx context.Context, id uuid.UUID) (*Chat, error) {
	c, err := r.GetChat(ctx, id)
	if err != nil || c == nil {
		return c, err
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, chat_id, role, content, sources, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("chat: messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("chat: messages: %w", err)
	}
	c.Messages = msgs
	return c, nil
}

// AddMessage appends m to its chat.
func (r *Repository) AddMessage(ctx context.Context, m Message) (*Message, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	sources := m.Sources
	if sources == nil {
		sources = []Source{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("chat: encode sources: %w", err)
	}
	const query = `
		INSERT INTO messages (id, chat_id, role, content, sources)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, chat_id, role, content, sources, created_at`
	saved, err := scanMessage(r.q.QueryRow(ctx, query, m.ID, m.ChatID, m.Role, m.Content, raw))
	if err != nil {
		return nil, fmt.Errorf("chat: add message: %w", err)
	}
	return &saved, nil
}
