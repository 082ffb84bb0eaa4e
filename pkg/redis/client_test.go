package redis

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvestdesk/farmops-backend/pkg/config"
)

func TestSetNXOnlyWritesOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := LockKey("test", "cron-worker")

	ok, err := client.SetNX(ctx, key, "first", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SetNX(ctx, key, "second", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := client.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, client.Del(ctx, key))
	_, err = client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestReleaseIfOwner(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := LockKey("test", "cron-worker")

	_, err := client.SetNX(ctx, key, "owner-a", time.Hour)
	require.NoError(t, err)

	released, err := client.ReleaseIfOwner(ctx, key, "owner-b")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Contains(t, mock.data, key)

	released, err = client.ReleaseIfOwner(ctx, key, "owner-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.NotContains(t, mock.data, key)
}

func TestStoredResponseRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.ResponseKey(http.MethodPost, "/api/inventory-move", "abc")
	assert.Equal(t, "farmops:idempotency:POST|/api/inventory-move:abc", key)

	_, err := client.LoadResponse(ctx, key)
	assert.ErrorIs(t, err, ErrNoResponse)

	ok, err := client.SaveResponse(ctx, key, StoredResponse{
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"data":{"ok":true}}`),
		Fingerprint: "h1",
	}, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.SaveResponse(ctx, key, StoredResponse{Status: http.StatusOK, Fingerprint: "h2"}, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "first stored response wins")

	stored, err := client.LoadResponse(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, stored.Status)
	assert.Equal(t, "h1", stored.Fingerprint)
	assert.JSONEq(t, `{"data":{"ok":true}}`, string(stored.Body))
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "farmops:lock:prod:cron-worker", LockKey("prod", "cron-worker"))
	assert.Equal(t, "farmops:lock:local:cron-worker", LockKey(" ", "cron-worker"))
	assert.Equal(t, "farmops:a:b", key(" a ", "", "b"))
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var client *Client
	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.ReleaseIfOwner(context.Background(), "k", "o")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.ErrorIs(t, client.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2, PoolSize: 10, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/3", PoolSize: 4})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)

	_, err = optionsFromConfig(config.RedisConfig{URL: "http://bad"})
	assert.Error(t, err)
}

// mockCmdable implements the handful of commands the client sends; any
// other call hits the nil embedded interface and panics.
type mockCmdable struct {
	redis.Cmdable
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// EvalSha behaves as if compareAndDelete were already loaded, so Script.Run
// never falls back to EVAL.
func (m *mockCmdable) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	if sha != compareAndDelete.Hash() {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script %s", sha))
	}
	if m.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}
