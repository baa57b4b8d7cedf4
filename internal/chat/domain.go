package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Source is a repository excerpt an answer was grounded on.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Quote string `json:"quote,omitempty"`
}

// Message is one turn in a chat.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    uuid.UUID   `json:"chat_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Sources   []Source    `json:"sources"`
	CreatedAt time.Time   `json:"created_at"`
}

// Chat is a conversation owned by one user.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Answer is the generated reply to a question.
type Answer struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources"`
}

// CreateChatInput is the payload for creating a chat.
type CreateChatInput struct {
	Title string `json:"title" validate:"required,max=255"`
}

// AskInput is the payload for posting a question to a chat.
type AskInput struct {
	Content       string   `json:"content" validate:"required,max=4000"`
	RepositoryIDs []string `json:"repository_ids" validate:"omitempty,dive,required"`
}

// Exchange is the stored question together with its answer.
type Exchange struct {
	Question Message `json:"question"`
	Answer   Message `json:"answer"`
	Cached   bool    `json:"cached"`
}
