package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalchat/internal/historystore"
)

func TestStorage(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	_, err := s.Load(ctx, "k")
	assert.ErrorIs(t, err, historystore.ErrNotFound)

	buf := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", buf))
	buf[0] = 'z'
	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got), "stored bytes must not alias the caller's slice")
	assert.Equal(t, 1, s.Saves())

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Load(ctx, "k")
	assert.ErrorIs(t, err, historystore.ErrNotFound)
}
