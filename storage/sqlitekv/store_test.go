package sqlitekv_test

import (
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-task-client/storage"
	"github.com/jrsteele09/go-task-client/storage/sqlitekv"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	s, err := sqlitekv.Open(path)
	require.NoError(t, err)

	_, err = s.Get("access")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set("access", "a1"))
	require.NoError(t, s.Set("refresh", "r1"))
	require.NoError(t, s.Set("access", "a2"))

	v, err := s.Get("access")
	require.NoError(t, err)
	require.Equal(t, "a2", v)
	require.NoError(t, s.Close())

	t.Run("survives reopen", func(t *testing.T) {
		s, err := sqlitekv.Open(path)
		require.NoError(t, err)
		defer s.Close()

		v, err := s.Get("refresh")
		require.NoError(t, err)
		require.Equal(t, "r1", v)

		require.NoError(t, s.Delete("access", "refresh", "user"))
		_, err = s.Get("access")
		require.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.Get("refresh")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := sqlitekv.Open("")
	require.Error(t, err)
}
