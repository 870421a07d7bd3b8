package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutNeverOverwrites(t *testing.T) {
	store := NewMemoryStore("http://files.local")
	ctx := context.Background()

	url, err := store.Put(ctx, "chat-files", "chats/c1/a.pdf", []byte("one"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://files.local/chat-files/chats/c1/a.pdf", url)

	_, err = store.Put(ctx, "chat-files", "chats/c1/a.pdf", []byte("two"), "application/pdf")
	assert.ErrorIs(t, err, ErrObjectExists)

	obj, ok := store.Get("chat-files", "chats/c1/a.pdf")
	require.True(t, ok)
	assert.Equal(t, []byte("one"), obj.Data)
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore("http://files.local")
	ctx := context.Background()

	_, err := store.Put(ctx, "chat-images", "k", []byte("x"), "image/png")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "chat-images", "k"))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, store.Delete(ctx, "chat-images", "k"), ErrObjectNotFound)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "", publicURL("http://cdn", "avatars", ""))
	assert.Equal(t, "http://cdn/avatars/u1/me.png", publicURL("http://cdn", "avatars", "/u1/me.png"))
}
