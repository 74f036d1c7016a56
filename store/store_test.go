package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/hbs/compiler"
)

func TestKey(t *testing.T) {
	a, err := Key("{{a}}", nil)
	require.NoError(t, err)
	b, err := Key("{{a}}", &compiler.Options{})
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := Key("{{b}}", nil)
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	d, err := Key("{{a}}", &compiler.Options{Strict: true})
	require.NoError(t, err)
	require.NotEqual(t, a, d)
	require.Len(t, d, 36)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "k", []byte("v1")))
	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), data)

	require.NoError(t, s.Put(ctx, "k", []byte("v2")))
	data, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), data)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, "missing"))
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testStore(t, m)
	require.Equal(t, 0, m.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	data := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", data))
	data[0] = 'x'
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func newRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, opts...), mr
}

func TestRedis(t *testing.T) {
	s, mr := newRedis(t)
	testStore(t, s)

	require.NoError(t, s.Put(context.Background(), "abc", []byte("x")))
	require.True(t, mr.Exists(DefaultPrefix+"abc"))
}

func TestRedisPrefixAndTTL(t *testing.T) {
	s, mr := newRedis(t, WithPrefix("tpl:"), WithTTL(time.Minute))
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "abc", []byte("x")))
	require.True(t, mr.Exists("tpl:abc"))
	require.Equal(t, time.Minute, mr.TTL("tpl:abc"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second})
	defer client.Close()
	s := NewRedis(client)
	_, err := s.Get(context.Background(), "abc")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
