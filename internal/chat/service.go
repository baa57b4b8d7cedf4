package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/shared"
)

// Store persists chats and messages.
type Store interface {
	CreateChat(ctx context.Context, ownerID uuid.UUID, title string) (*Chat, error)
	GetChat(ctx context.Context, id uuid.UUID) (*Chat, error)
	GetUserChats(ctx context.Context, ownerID uuid.UUID) ([]Chat, error)
	GetChatWithMessages(ctx context.Context, id uuid.UUID) (*Chat, error)
	AddMessage(ctx context.Context, m Message) (*Message, error)
}

// IndexedRepositories lists repositories with a successful indexing job.
type IndexedRepositories interface {
	IndexedRepositoryIDs(ctx context.Context) ([]string, error)
}

// Cache looks up and stores generated answers.
type Cache interface {
	Get(ctx context.Context, key string) (*Answer, bool, error)
	Put(ctx context.Context, key string, ans Answer, ttl time.Duration) error
}

// Service implements chat use cases for one request.
type Service struct {
	store    Store
	indexed  IndexedRepositories
	cache    Cache
	answerer Answerer
	ttl      time.Duration
	logger   *slog.Logger
}

// ServiceParams groups Service collaborators.
type ServiceParams struct {
	Store    Store
	Indexed  IndexedRepositories
	Cache    Cache
	Answerer Answerer
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    p.Store,
		indexed:  p.Indexed,
		cache:    p.Cache,
		answerer: p.Answerer,
		ttl:      p.CacheTTL,
		logger:   logger,
	}
}

// CreateChat starts a conversation for ownerID.
func (s *Service) CreateChat(ctx context.Context, ownerID uuid.UUID, in CreateChatInput) (*Chat, error) {
	return s.store.CreateChat(ctx, ownerID, strings.TrimSpace(in.Title))
}

// ListChats returns the chats of ownerID.
func (s *Service) ListChats(ctx context.Context, ownerID uuid.UUID) ([]Chat, error) {
	chats, err := s.store.GetUserChats(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []Chat{}
	}
	return chats, nil
}

func (s *Service) owned(ctx context.Context, ownerID, chatID uuid.UUID, withMessages bool) (*Chat, error) {
	var (
		c   *Chat
		err error
	)
	if withMessages {
		c, err = s.store.GetChatWithMessages(ctx, chatID)
	} else {
		c, err = s.store.GetChat(ctx, chatID)
	}
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, shared.NotFound("Chat not found")
	}
	if c.OwnerID != ownerID {
		return nil, shared.Forbidden("Not enough permissions to access this chat")
	}
	return c, nil
}

// History returns the chat with its messages when ownerID owns it.
func (s *Service) History(ctx context.Context, ownerID, chatID uuid.UUID) (*Chat, error) {
	c, err := s.owned(ctx, ownerID, chatID, true)
	if err != nil {
		return nil, err
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return c, nil
}

// Ask records the question, answers it from cache or the answerer, and
// records the answer.
func (s *Service) Ask(ctx context.Context, ownerID, chatID uuid.UUID, in AskInput) (*Exchange, error) {
	if _, err := s.owned(ctx, ownerID, chatID, false); err != nil {
		return nil, err
	}
	question, err := s.store.AddMessage(ctx, Message{ChatID: chatID, Role: RoleUser, Content: in.Content})
	if err != nil {
		return nil, err
	}

	repoIDs := in.RepositoryIDs
	if len(repoIDs) == 0 && s.indexed != nil {
		repoIDs, err = s.indexed.IndexedRepositoryIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	key := ConstructKey(NormalizeQuery(in.Content), repoIDs)
	ans, cached := s.lookup(ctx, key)
	if !cached {
		fresh, err := s.answerer.Answer(ctx, in.Content, repoIDs)
		if err != nil {
			return nil, err
		}
		ans = &fresh
		if s.cache != nil {
			if err := s.cache.Put(ctx, key, fresh, s.ttl); err != nil {
				s.logger.Warn("chat cache put", slog.Any("error", err))
			}
		}
	}

	answer, err := s.store.AddMessage(ctx, Message{
		ChatID:  chatID,
		Role:    RoleAssistant,
		Content: ans.Content,
		Sources: ans.Sources,
	})
	if err != nil {
		return nil, err
	}
	return &Exchange{Question: *question, Answer: *answer, Cached: cached}, nil
}

func (s *Service) lookup(ctx context.Context, key string) (*Answer, bool) {
	if s.cache == nil {
		return nil, false
	}
	ans, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("chat cache get", slog.Any("error", err))
		return nil, false
	}
	return ans, ok
}
