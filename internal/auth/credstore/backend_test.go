package credstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/constants"
	"github.com/CodieIndieTechie/schema-sql-agent-sub001/internal/auth/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisBackend(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis start")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisBackend(client), mr
}

func TestBackends(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) Backend
	}{
		{
			name: "memory",
			open: func(t *testing.T) Backend { return NewMemoryBackend() },
		},
		{
			name: "file",
			open: func(t *testing.T) Backend {
				b, err := NewFileBackend(filepath.Join(t.TempDir(), "creds"))
				require.NoError(t, err)
				return b
			},
		},
		{
			name: "redis",
			open: func(t *testing.T) Backend {
				b, _ := newMiniredisBackend(t)
				return b
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Backend {
				b, err := OpenSQLiteBackend(filepath.Join(t.TempDir(), "credentials.db"))
				require.NoError(t, err)
				return b
			},
		},
	}

	for _, bt := range backends {
		t.Run(bt.name, func(t *testing.T) {
			backend := bt.open(t)
			defer func() { assert.NoError(t, backend.Close()) }()
			ctx := context.Background()
			exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

			_, err := backend.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, backend.Put(ctx, "k1", Entry{Value: "v1", ExpiresAt: exp}))
			got, err := backend.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, "v1", got.Value)
			assert.True(t, exp.Equal(got.ExpiresAt), "expiry %s != %s", got.ExpiresAt, exp)

			require.NoError(t, backend.Put(ctx, "k1", Entry{Value: "v2", ExpiresAt: exp}))
			got, err = backend.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.Value)

			require.NoError(t, backend.Put(ctx, "k2", Entry{Value: "other", ExpiresAt: exp}))
			require.NoError(t, backend.Delete(ctx, "k1", "k2"))
			require.NoError(t, backend.Delete(ctx, "k1", "k2"), "delete must be idempotent")

			_, err = backend.Get(ctx, "k1")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = backend.Get(ctx, "k2")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRedisBackend_ExpiresWithTTL(t *testing.T) {
	backend, mr := newMiniredisBackend(t)
	ctx := context.Background()

	require.NoError(t, backend.Put(ctx, "k", Entry{Value: "v", ExpiresAt: time.Now().Add(time.Minute)}))
	assert.True(t, mr.Exists("sqlagent:k"))

	mr.FastForward(2 * time.Minute)
	_, err := backend.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBackend_RejectsExpiredEntry(t *testing.T) {
	backend, _ := newMiniredisBackend(t)
	err := backend.Put(context.Background(), "k", Entry{Value: "v", ExpiresAt: time.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, ErrExpired)
}

func TestRedisBackend_TTLFollowsStoreClock(t *testing.T) {
	backend, mr := newMiniredisBackend(t)
	clock := NewFixedClock(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC))
	store := NewStore(backend, WithClock(clock))
	ctx := context.Background()

	require.True(t, store.Write(ctx, models.SessionCredential{AccessToken: "tok", Profile: testProfile}))
	assert.Equal(t, constants.CredentialTTL, mr.TTL("sqlagent:"+constants.TokenKey))
	assert.Equal(t, constants.CredentialTTL, mr.TTL("sqlagent:"+constants.ProfileKey))

	cred, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", cred.AccessToken)
}

func TestRedisBackend_UnavailableServer(t *testing.T) {
	backend, mr := newMiniredisBackend(t)
	mr.Close()

	store := NewStore(backend)
	_, ok := store.Read(context.Background())
	assert.False(t, ok, "an unreachable redis reads as logged out")
}

func TestFileBackend_Permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "creds")
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, backend.Put(context.Background(), "sqlagent_token", Entry{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}))

	info, err := os.Stat(filepath.Join(dir, FileName("sqlagent_token")))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestFileBackend_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("k")), []byte("{truncated"), 0o600))

	_, err = backend.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileBackend_RejectsPathKeys(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b"} {
		assert.Error(t, backend.Put(context.Background(), key, Entry{Value: "v"}), "key %q", key)
	}
}
