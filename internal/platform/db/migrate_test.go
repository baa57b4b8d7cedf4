package db

import (
	"errors"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSourceListsVersions(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	_, err = src.Next(first)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestEmbeddedMigrationsCreateCoreTables(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	r, ident, err := src.ReadUp(1)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "init", ident)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	for _, table := range []string{"users", "roles", "chats", "messages", "indexing_jobs", "gitlab_config"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestEmbeddedMigrationsCanRollBack(t *testing.T) {
	src, err := migrationSource()
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	r, _, err := src.ReadDown(1)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(body), "DROP TABLE IF EXISTS users")
}
