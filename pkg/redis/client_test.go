package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSetNXOnlyFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "first", value)
}

func TestGetMissingReturnsNil(t *testing.T) {
	client := &Client{store: newMockCmdable()}
	_, err := client.Get(context.Background(), "missing")
	require.ErrorIs(t, err, Nil)
}

func TestPublishRecordsChannel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}
	channel := client.OrderMessagesChannel("order-1")

	require.NoError(t, client.Publish(context.Background(), channel, `{"body":"hi"}`))
	require.Equal(t, []string{"stallmarket:orders:order-1:messages"}, mock.published)
}

func TestPublishEncodesStructuredPayloads(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	require.NoError(t, client.Publish(context.Background(), "c", map[string]string{"content": "ready at noon"}))
	require.NoError(t, client.Publish(context.Background(), "c", []byte("raw")))
	require.Equal(t, []byte(`{"content":"ready at noon"}`), mock.payloads[0])
	require.Equal(t, []byte("raw"), mock.payloads[1])

	require.Error(t, client.Publish(context.Background(), "c", make(chan int)))
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	require.ErrorIs(t, client.Ping(context.Background()), ErrNotInitialized)
	require.Error(t, client.Publish(context.Background(), "c", "p"))
	_, err := client.SetNX(context.Background(), "k", "v", time.Second)
	require.Error(t, err)
	require.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "stallmarket:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "stallmarket:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "stallmarket:lock:cart:user-1", client.LockKey("cart", "user-1"))
	require.Equal(t, "stallmarket:cart_merge:session", client.CartMergeKey("session"))
	require.Equal(t, "stallmarket:lock:cron", client.LockKey("cron", " "))
	require.Equal(t, "stallmarket:orders:o-1:messages", client.OrderMessagesChannel("o-1"))
}

func TestOptionsFromConfigRequiresAddress(t *testing.T) {
	_, err := optionsFromConfig(configWith("", ""))
	require.Error(t, err)

	opts, err := optionsFromConfig(configWith("redis://localhost:6379/2", ""))
	require.NoError(t, err)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 10, opts.PoolSize)
}

func TestOptionsFromConfigKeepsURLSettings(t *testing.T) {
	cfg := configWith("redis://localhost:6379/0?pool_size=3", "")
	cfg.DB = 4
	cfg.DialTimeout = 2 * time.Second
	opts, err := optionsFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, 3, opts.PoolSize)
	require.Equal(t, 4, opts.DB)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	cfg = configWith("", "cache:6379")
	cfg.Password = "secret"
	opts, err = optionsFromConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, "cache:6379", opts.Addr)
	require.Equal(t, "secret", opts.Password)
	require.Equal(t, 10, opts.PoolSize)
}

func configWith(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr, PoolSize: 10}
}

type mockCmdable struct {
	data      map[string]string
	published []string
	payloads  []any
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	m.published = append(m.published, channel)
	m.payloads = append(m.payloads, message)
	return redis.NewIntResult(0, nil)
}
