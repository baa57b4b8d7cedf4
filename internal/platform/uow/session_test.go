package uow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stagingDB is a key/value table whose transactions stage writes and only
// publish them on commit.
type stagingDB struct {
	mu   sync.Mutex
	rows map[string]string
}

func (d *stagingDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return &stagingTx{db: d, staged: map[string]string{}}, nil
}

type stagingTx struct {
	pgx.Tx
	db     *stagingDB
	staged map[string]string
}

// Exec treats sql as the key and the first argument as the value.
func (t *stagingTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.staged[sql] = args[0].(string)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *stagingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if v, ok := t.staged[sql]; ok {
		return valueRow{value: v}
	}
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if v, ok := t.db.rows[sql]; ok {
		return valueRow{value: v}
	}
	return errRow{err: pgx.ErrNoRows}
}

func (t *stagingTx) Commit(ctx context.Context) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.db.rows == nil {
		t.db.rows = map[string]string{}
	}
	for k, v := range t.staged {
		t.db.rows[k] = v
	}
	t.staged = nil
	return nil
}

func (t *stagingTx) Rollback(ctx context.Context) error {
	t.staged = nil
	return nil
}

type valueRow struct{ value string }

func (r valueRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.value
	return nil
}

func read(ctx context.Context, m *Manager, key string) (string, error) {
	var out string
	err := m.Do(ctx, func(ctx context.Context, s *Scope) error {
		return s.QueryRow(ctx, key).Scan(&out)
	})
	return out, err
}

func TestCommittedWriteIsVisibleToLaterScope(t *testing.T) {
	m := NewManager(&stagingDB{}, Options{})
	ctx := context.Background()

	require.NoError(t, m.Do(ctx, func(ctx context.Context, s *Scope) error {
		_, err := s.Exec(ctx, "chat:1", "First chat")
		return err
	}))

	title, err := read(ctx, m, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, "First chat", title)
}

func TestWriteFollowedByErrorIsAbsentFromLaterScope(t *testing.T) {
	m := NewManager(&stagingDB{}, Options{})
	ctx := context.Background()
	failure := errors.New("mlops unavailable")

	err := m.Do(ctx, func(ctx context.Context, s *Scope) error {
		if _, err := s.Exec(ctx, "chat:2", "Doomed chat"); err != nil {
			return err
		}
		var staged string
		require.NoError(t, s.QueryRow(ctx, "chat:2").Scan(&staged))
		assert.Equal(t, "Doomed chat", staged)
		return failure
	})
	require.Error(t, err)

	_, err = read(ctx, m, "chat:2")
	assert.Error(t, err)
}
