package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"direct-chat/internal/mocks"
	"direct-chat/internal/models"
)

// newTestClient connects to a local Redis and removes test keys. Tests skip without Redis.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, ProfilePrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return client
}

func TestGetProfileReadsThrough(t *testing.T) {
	client := newTestClient(t)
	dir := new(mocks.ProfileDirectoryMock)
	c := NewProfileCache(dir, client, time.Minute)
	ctx := context.Background()

	dir.On("GetProfile", mock.Anything, "test_u1").Return(models.Profile{ID: "test_u1", Username: "ana"}, nil).Once()

	first, err := c.GetProfile(ctx, "test_u1")
	require.NoError(t, err)
	second, err := c.GetProfile(ctx, "test_u1")
	require.NoError(t, err)

	assert.Equal(t, "ana", first.Username)
	assert.Equal(t, first, second)
	dir.AssertExpectations(t)
}

func TestBulkProfilesFetchesOnlyMisses(t *testing.T) {
	client := newTestClient(t)
	dir := new(mocks.ProfileDirectoryMock)
	c := NewProfileCache(dir, client, time.Minute)
	ctx := context.Background()

	dir.On("GetProfile", mock.Anything, "test_a").Return(models.Profile{ID: "test_a", Username: "a"}, nil).Once()
	_, err := c.GetProfile(ctx, "test_a")
	require.NoError(t, err)

	dir.On("BulkProfiles", mock.Anything, []string{"test_b", "test_c"}).
		Return(map[string]models.Profile{"test_b": {ID: "test_b", Username: "b"}}, nil).Once()

	got, err := c.BulkProfiles(ctx, []string{"test_a", "test_b", "test_c"})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Equal(t, "a", got["test_a"].Username)
	assert.Equal(t, "b", got["test_b"].Username)
	dir.AssertExpectations(t)
}

func TestInvalidate(t *testing.T) {
	client := newTestClient(t)
	dir := new(mocks.ProfileDirectoryMock)
	c := NewProfileCache(dir, client, time.Minute)
	ctx := context.Background()

	dir.On("GetProfile", mock.Anything, "test_x").Return(models.Profile{ID: "test_x", Username: "old"}, nil).Once()
	_, err := c.GetProfile(ctx, "test_x")
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "test_x"))

	dir.On("GetProfile", mock.Anything, "test_x").Return(models.Profile{ID: "test_x", Username: "new"}, nil).Once()
	p, err := c.GetProfile(ctx, "test_x")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Username)
	dir.AssertExpectations(t)
}
