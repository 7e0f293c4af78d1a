package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	redispkg "chub/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			return NewRedisStore(redispkg.NewClient(mr.Addr()), "chub:test:").OwnClient()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLStore(DialectSQLite, filepath.Join(t.TempDir(), "session.db"), nil)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStores_Contract(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer func() { _ = s.Close() }()

			_, err := s.Get(ctx, KeyToken)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, KeyToken, "t1"))
			require.NoError(t, s.Set(ctx, KeyToken, "t2"))
			require.NoError(t, s.Set(ctx, KeyUser, `{"id":1}`))

			got, err := s.Get(ctx, KeyToken)
			require.NoError(t, err)
			assert.Equal(t, "t2", got)

			require.NoError(t, s.Delete(ctx, KeyToken, KeyUser))
			_, err = s.Get(ctx, KeyToken)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, KeyUser)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx))
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	require.NoError(t, NewFileStore(path).Set(ctx, KeyToken, "t1"))
	got, err := NewFileStore(path).Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "t1", got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get(context.Background(), KeyToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_UsesPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redispkg.NewClient(mr.Addr()), "chub:session:").OwnClient()
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Set(context.Background(), KeyToken, "abc"))
	v, err := mr.Get("chub:session:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestOpenSQLStore_UnknownDialect(t *testing.T) {
	_, err := OpenSQLStore("oracle", "x", nil)
	assert.Error(t, err)
}
