package objstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("https://cdn.example.com/media/")

	url, err := s.Put(ctx, "2026/10/16/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/2026/10/16/a.png", url)

	key, ok := s.KeyFromURL(url)
	require.True(t, ok)
	assert.Equal(t, "2026/10/16/a.png", key)

	data, ct, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", ct)

	require.NoError(t, s.Delete(ctx, key))
	assert.Empty(t, s.Keys())
	assert.True(t, errors.Is(s.Delete(ctx, key), ErrObjectNotFound))
}

func TestMemoryStore_ShortWrite(t *testing.T) {
	s := NewMemoryStore("")
	_, err := s.Put(context.Background(), "k", strings.NewReader("ab"), 5, "text/plain")
	assert.Error(t, err)
	assert.Empty(t, s.Keys())
}

func TestKeyFromURL_ForeignURL(t *testing.T) {
	s := NewMemoryStore("https://cdn.example.com/media")
	_, ok := s.KeyFromURL("https://elsewhere.example.com/media/x.png")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("https://cdn.example.com/media/")
	assert.False(t, ok)
}
