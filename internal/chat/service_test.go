package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/semsearch/internal/shared"
)

type memoryStore struct {
	mu       sync.Mutex
	chats    map[uuid.UUID]Chat
	messages []Message
	addErr   error
}

func newMemoryStore() *memoryStore { return &memoryStore{chats: map[uuid.UUID]Chat{}} }

func (m *memoryStore) CreateChat(ctx context.Context, ownerID uuid.UUID, title string) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Chat{ID: uuid.New(), Title: title, OwnerID: ownerID, CreatedAt: time.Now()}
	m.chats[c.ID] = c
	return &c, nil
}

func (m *memoryStore) GetChat(ctx context.Context, id uuid.UUID) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryStore) GetUserChats(ctx context.Context, ownerID uuid.UUID) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Chat
	for _, c := range m.chats {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryStore) GetChatWithMessages(ctx context.Context, id uuid.UUID) (*Chat, error) {
	c, err := m.GetChat(ctx, id)
	if c == nil || err != nil {
		return c, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ChatID == id {
			c.Messages = append(c.Messages, msg)
		}
	}
	return c, nil
}

func (m *memoryStore) AddMessage(ctx context.Context, msg Message) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return nil, m.addErr
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, msg)
	return &msg, nil
}

type staticIndex struct {
	ids []string
	err error
}

func (s staticIndex) IndexedRepositoryIDs(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

type recordingAnswerer struct {
	calls []string
	repos [][]string
	err   error
}

func (r *recordingAnswerer) Answer(ctx context.Context, q string, ids []string) (Answer, error) {
	r.calls = append(r.calls, q)
	r.repos = append(r.repos, ids)
	if r.err != nil {
		return Answer{}, r.err
	}
	return Answer{Content: "answer: " + q, Sources: []Source{{Title: "doc", URL: "https://x/doc"}}}, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*Answer, bool, error) {
	return nil, false, errors.New("redis down")
}

func (brokenCache) Put(context.Context, string, Answer, time.Duration) error {
	return errors.New("redis down")
}

func newTestService(t *testing.T, cache Cache) (*Service, *memoryStore, *recordingAnswerer) {
	t.Helper()
	store := newMemoryStore()
	ans := &recordingAnswerer{}
	if cache == nil {
		cache, _ = newTestCache(t)
	}
	svc := NewService(ServiceParams{
		Store:    store,
		Indexed:  staticIndex{ids: []string{"2", "1"}},
		Cache:    cache,
		Answerer: ans,
		CacheTTL: time.Hour,
	})
	return svc, store, ans
}

func TestHistoryOwnership(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	c, err := svc.CreateChat(ctx, owner, CreateChatInput{Title: "  Onboarding "})
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", c.Title)

	got, err := svc.History(ctx, owner, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.NotNil(t, got.Messages)

	_, err = svc.History(ctx, other, c.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.History(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListChatsOnlyOwn(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	_, _ = svc.CreateChat(ctx, owner, CreateChatInput{Title: "a"})
	_, _ = svc.CreateChat(ctx, uuid.New(), CreateChatInput{Title: "b"})

	chats, err := svc.ListChats(ctx, owner)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "a", chats[0].Title)

	empty, err := svc.ListChats(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func TestAskUsesCache(t *testing.T) {
	svc, store, ans := newTestService(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	c, err := svc.CreateChat(ctx, owner, CreateChatInput{Title: "t"})
	require.NoError(t, err)

	first, err := svc.Ask(ctx, owner, c.ID, AskInput{Content: "How do I deploy?"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, RoleUser, first.Question.Role)
	assert.Equal(t, RoleAssistant, first.Answer.Role)
	assert.Equal(t, "answer: How do I deploy?", first.Answer.Content)
	assert.Equal(t, [][]string{{"2", "1"}}, ans.repos)

	second, err := svc.Ask(ctx, owner, c.ID, AskInput{Content: "how do i   DEPLOY?"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer.Content, second.Answer.Content)
	assert.Len(t, ans.calls, 1)
	assert.Len(t, store.messages, 4)
}

func TestAskExplicitRepositoriesChangeKey(t *testing.T) {
	svc, _, ans := newTestService(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	c, _ := svc.CreateChat(ctx, owner, CreateChatInput{Title: "t"})

	_, err := svc.Ask(ctx, owner, c.ID, AskInput{Content: "q"})
	require.NoError(t, err)
	_, err = svc.Ask(ctx, owner, c.ID, AskInput{Content: "q", RepositoryIDs: []string{"9"}})
	require.NoError(t, err)
	assert.Len(t, ans.calls, 2)
	assert.Equal(t, []string{"9"}, ans.repos[1])
}

func TestAskForeignChatWritesNothing(t *testing.T) {
	svc, store, ans := newTestService(t, nil)
	ctx := context.Background()
	c, _ := svc.CreateChat(ctx, uuid.New(), CreateChatInput{Title: "t"})

	_, err := svc.Ask(ctx, uuid.New(), c.ID, AskInput{Content: "q"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, store.messages)
	assert.Empty(t, ans.calls)
}

func TestAskToleratesCacheFailure(t *testing.T) {
	svc, store, _ := newTestService(t, brokenCache{})
	ctx := context.Background()
	owner := uuid.New()
	c, _ := svc.CreateChat(ctx, owner, CreateChatInput{Title: "t"})

	ex, err := svc.Ask(ctx, owner, c.ID, AskInput{Content: "q"})
	require.NoError(t, err)
	assert.False(t, ex.Cached)
	assert.Len(t, store.messages, 2)
}

func TestAskPropagatesAnswererError(t *testing.T) {
	svc, _, ans := newTestService(t, nil)
	boom := errors.New("pipeline unavailable")
	ans.err = boom
	ctx := context.Background()
	owner := uuid.New()
	c, _ := svc.CreateChat(ctx, owner, CreateChatInput{Title: "t"})

	_, err := svc.Ask(ctx, owner, c.ID, AskInput{Content: "q"})
	assert.ErrorIs(t, err, boom)
}
