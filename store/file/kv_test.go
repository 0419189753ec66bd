package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "wallet.json")
	s := NewKeyValueStore(path)

	t.Run("missing file reads empty", func(t *testing.T) {
		_, ok, err := s.Get(ctx, "stellar_pump_wallet")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set persists across instances", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "stellar_pump_wallet", `{"publicKey":"GABC"}`))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())

		reopened := NewKeyValueStore(path)
		v, ok, err := reopened.Get(ctx, "stellar_pump_wallet")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"publicKey":"GABC"}`, v)
	})

	t.Run("delete removes key", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "stellar_pump_wallet"))
		require.NoError(t, s.Delete(ctx, "stellar_pump_wallet"))

		_, ok, err := s.Get(ctx, "stellar_pump_wallet")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestKeyValueStoreCorruptFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewKeyValueStore(path)
	_, ok, err := s.Get(ctx, "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	matches, err := filepath.Glob(filepath.Join(dir, "wallet.json.corrupt.*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
