package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewDiskStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	n, err := s.Save(ctx, "a.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	ok, err := s.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Save(ctx, "a.jpg", strings.NewReader("again"))
	assert.Error(t, err, "existing files are never overwritten")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".keep"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o750))

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.jpg", files[0].Name)
	assert.Equal(t, int64(10), files[0].Size)

	require.NoError(t, s.Remove(ctx, "a.jpg"))
	require.NoError(t, s.Remove(ctx, "a.jpg"), "removing a missing file is a no-op")

	ok, err = s.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStore_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.jpg", "sub/x.jpg", ".hidden", ".."} {
		_, err := s.Save(ctx, name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, s.Remove(ctx, name), ErrInvalidName, name)
	}
}
